package flow

import "testing"

func TestGuardAllowsFirstDispatchOnly(t *testing.T) {
	g := NewFulfillmentGuard()

	if !g.Begin("0xh1") {
		t.Fatal("first dispatch for a hash must proceed")
	}
	if g.Begin("0xh1") {
		t.Fatal("second dispatch for the same hash must be suppressed")
	}
	if !g.Begin("0xh2") {
		t.Fatal("a different hash is an independent dispatch")
	}
}

func TestGuardSuppressesEvenAfterFailure(t *testing.T) {
	g := NewFulfillmentGuard()

	g.Begin("0xh1")
	g.Finish("0xh1", false)

	// Failed fulfillment is not retried automatically; the hash stays
	// claimed and recovery is out-of-band.
	if g.Begin("0xh1") {
		t.Fatal("a failed dispatch must not unlock the hash")
	}
	if status, ok := g.Status("0xh1"); !ok || status != FulfillmentFailed {
		t.Fatalf("status = %v, %v", status, ok)
	}
}

func TestGuardStatusLifecycle(t *testing.T) {
	g := NewFulfillmentGuard()

	if _, ok := g.Status("0xh1"); ok {
		t.Fatal("unknown hash should have no status")
	}
	g.Begin("0xh1")
	if status, _ := g.Status("0xh1"); status != FulfillmentPending {
		t.Fatalf("status = %s, want pending", status)
	}
	g.Finish("0xh1", true)
	if status, _ := g.Status("0xh1"); status != FulfillmentSucceeded {
		t.Fatalf("status = %s, want succeeded", status)
	}
}
