package flow

import "fmt"

// State is the single authoritative status of a purchase flow.
type State string

const (
	StateIdle                   State = "idle"
	StateValidating             State = "validating"
	StateApproving              State = "approving"
	StateAwaitingOrderSignature State = "awaitingOrderSignature"
	StateOrderBroadcast         State = "orderBroadcast"
	StateOrderConfirming        State = "orderConfirming"
	StateOrderConfirmed         State = "orderConfirmed"
	StateBackendProcessing      State = "backendProcessing"
	StateSuccess                State = "success"
	StateBackendFailed          State = "backendFailed"
	StateError                  State = "error"
)

// transitions is the legal move set. Terminal states have no outgoing
// transitions; error is reachable from every pre-confirmation state. Once
// the order is confirmed the only failure exit is backendFailed, because
// the on-chain debit is already irreversible.
var transitions = map[State]map[State]bool{
	StateIdle: {
		StateValidating: true,
	},
	StateValidating: {
		StateIdle:                   true, // validation failure, nothing submitted
		StateApproving:              true,
		StateAwaitingOrderSignature: true,
		StateError:                  true,
	},
	StateApproving: {
		StateAwaitingOrderSignature: true,
		StateError:                  true,
	},
	StateAwaitingOrderSignature: {
		StateOrderBroadcast: true,
		StateError:          true,
	},
	StateOrderBroadcast: {
		StateOrderConfirming: true,
		StateError:           true,
	},
	StateOrderConfirming: {
		StateOrderConfirmed: true,
		StateError:          true,
	},
	StateOrderConfirmed: {
		StateBackendProcessing: true,
	},
	StateBackendProcessing: {
		StateSuccess:       true,
		StateBackendFailed: true,
	},
	StateSuccess:       {},
	StateBackendFailed: {},
	StateError:         {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

// Terminal reports whether the state ends the flow. A new attempt after a
// terminal state always carries a freshly minted idempotency key.
func Terminal(s State) bool {
	return s == StateSuccess || s == StateBackendFailed || s == StateError
}

// InFlight reports whether the flow may not be abandoned in this state.
// Between approving and backendProcessing inclusive, dismissing the flow
// would let the user believe a submitted transaction was dropped.
func InFlight(s State) bool {
	switch s {
	case StateApproving, StateAwaitingOrderSignature, StateOrderBroadcast,
		StateOrderConfirming, StateOrderConfirmed, StateBackendProcessing:
		return true
	}
	return false
}

// AttemptKind distinguishes the two on-chain submissions a flow can make.
type AttemptKind string

const (
	AttemptApproval AttemptKind = "approval"
	AttemptOrder    AttemptKind = "order"
)

// AttemptStatus tracks one submission's lifecycle. It moves strictly
// forward; failed is terminal and a retry means a brand-new attempt under a
// new idempotency key.
type AttemptStatus string

const (
	AttemptUnsent            AttemptStatus = "unsent"
	AttemptAwaitingSignature AttemptStatus = "awaitingSignature"
	AttemptBroadcast         AttemptStatus = "broadcast"
	AttemptConfirming        AttemptStatus = "confirming"
	AttemptConfirmed         AttemptStatus = "confirmed"
	AttemptFailed            AttemptStatus = "failed"
)

var attemptRank = map[AttemptStatus]int{
	AttemptUnsent:            0,
	AttemptAwaitingSignature: 1,
	AttemptBroadcast:         2,
	AttemptConfirming:        3,
	AttemptConfirmed:         4,
}

// TransactionAttempt is one on-chain submission. Hash is assigned once the
// transaction is broadcast and retained even if a later step fails.
type TransactionAttempt struct {
	Kind   AttemptKind   `json:"kind"`
	Hash   string        `json:"hash,omitempty"`
	Status AttemptStatus `json:"status"`
}

func newAttempt(kind AttemptKind) *TransactionAttempt {
	return &TransactionAttempt{Kind: kind, Status: AttemptUnsent}
}

func (a *TransactionAttempt) advance(next AttemptStatus) error {
	if a.Status == AttemptFailed {
		return fmt.Errorf("%s attempt already failed", a.Kind)
	}
	if a.Status == AttemptConfirmed {
		return fmt.Errorf("%s attempt already confirmed", a.Kind)
	}
	if next == AttemptFailed {
		a.Status = AttemptFailed
		return nil
	}
	if attemptRank[next] <= attemptRank[a.Status] {
		return fmt.Errorf("%s attempt may not move from %s to %s", a.Kind, a.Status, next)
	}
	a.Status = next
	return nil
}
