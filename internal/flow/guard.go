package flow

import "sync"

// FulfillmentStatus is the dispatch state for one confirmed hash.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentSucceeded FulfillmentStatus = "succeeded"
	FulfillmentFailed    FulfillmentStatus = "failed"
)

// FulfillmentGuard enforces at-most-once backend dispatch per confirmed
// transaction hash within this flow instance. The biller may deduplicate
// server-side too, but the client never relies on that.
type FulfillmentGuard struct {
	mu         sync.Mutex
	dispatched map[string]FulfillmentStatus
}

func NewFulfillmentGuard() *FulfillmentGuard {
	return &FulfillmentGuard{dispatched: make(map[string]FulfillmentStatus)}
}

// Begin claims the hash for dispatch. It returns false when a dispatch for
// this hash has already been recorded, whatever its outcome; duplicate
// confirmation events must not produce a second network call.
func (g *FulfillmentGuard) Begin(hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.dispatched[hash]; ok {
		return false
	}
	g.dispatched[hash] = FulfillmentPending
	return true
}

// Finish records the dispatch outcome.
func (g *FulfillmentGuard) Finish(hash string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if ok {
		g.dispatched[hash] = FulfillmentSucceeded
	} else {
		g.dispatched[hash] = FulfillmentFailed
	}
}

// Status returns the recorded dispatch state for a hash.
func (g *FulfillmentGuard) Status(hash string) (FulfillmentStatus, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.dispatched[hash]
	return s, ok
}
