package flow

import "testing"

func TestTransitionTable(t *testing.T) {
	legal := []struct{ from, to State }{
		{StateIdle, StateValidating},
		{StateValidating, StateIdle},
		{StateValidating, StateApproving},
		{StateValidating, StateAwaitingOrderSignature},
		{StateApproving, StateAwaitingOrderSignature},
		{StateAwaitingOrderSignature, StateOrderBroadcast},
		{StateOrderBroadcast, StateOrderConfirming},
		{StateOrderConfirming, StateOrderConfirmed},
		{StateOrderConfirmed, StateBackendProcessing},
		{StateBackendProcessing, StateSuccess},
		{StateBackendProcessing, StateBackendFailed},
		{StateValidating, StateError},
		{StateApproving, StateError},
		{StateOrderConfirming, StateError},
	}
	for _, c := range legal {
		if !CanTransition(c.from, c.to) {
			t.Errorf("%s -> %s should be legal", c.from, c.to)
		}
	}

	illegal := []struct{ from, to State }{
		{StateIdle, StateOrderBroadcast},
		{StateApproving, StateOrderBroadcast},
		{StateOrderConfirmed, StateError},
		{StateOrderConfirmed, StateSuccess},
		{StateSuccess, StateValidating},
		{StateBackendFailed, StateBackendProcessing},
		{StateError, StateError},
	}
	for _, c := range illegal {
		if CanTransition(c.from, c.to) {
			t.Errorf("%s -> %s should be illegal", c.from, c.to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateSuccess, StateBackendFailed, StateError} {
		if !Terminal(s) {
			t.Errorf("%s should be terminal", s)
		}
		if len(transitions[s]) != 0 {
			t.Errorf("terminal state %s has outgoing transitions", s)
		}
	}
	for _, s := range []State{StateIdle, StateOrderConfirming, StateBackendProcessing} {
		if Terminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestInFlightSpansApprovalToBackend(t *testing.T) {
	inFlight := []State{
		StateApproving, StateAwaitingOrderSignature, StateOrderBroadcast,
		StateOrderConfirming, StateOrderConfirmed, StateBackendProcessing,
	}
	for _, s := range inFlight {
		if !InFlight(s) {
			t.Errorf("%s should forbid abandoning the flow", s)
		}
	}
	for _, s := range []State{StateIdle, StateValidating, StateSuccess, StateBackendFailed, StateError} {
		if InFlight(s) {
			t.Errorf("%s should permit abandoning the flow", s)
		}
	}
}

func TestAttemptMovesStrictlyForward(t *testing.T) {
	a := newAttempt(AttemptOrder)

	for _, next := range []AttemptStatus{
		AttemptAwaitingSignature, AttemptBroadcast, AttemptConfirming, AttemptConfirmed,
	} {
		if err := a.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if err := a.advance(AttemptBroadcast); err == nil {
		t.Fatal("moving backward should fail")
	}
	if err := a.advance(AttemptFailed); err == nil {
		t.Fatal("confirmed attempt must not become failed")
	}
}

func TestAttemptFailedIsTerminal(t *testing.T) {
	a := newAttempt(AttemptApproval)
	_ = a.advance(AttemptAwaitingSignature)
	if err := a.advance(AttemptFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := a.advance(AttemptBroadcast); err == nil {
		t.Fatal("failed attempt must not advance; a retry is a new attempt")
	}
}
