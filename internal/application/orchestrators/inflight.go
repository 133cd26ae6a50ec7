package orchestrators

import "sync"

// InFlightGuard tracks which records have an operation in flight. The
// underlying network call cannot be aborted once issued, so correctness
// rests on this guard rather than on cancellation.
type InFlightGuard struct {
	mu      sync.Mutex
	pending map[string]bool
}

// NewInFlightGuard creates an empty guard.
func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{pending: make(map[string]bool)}
}

// TryAcquire claims the slot for a record.
// POST: Returns false if an operation is already in flight for id
func (g *InFlightGuard) TryAcquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending[id] {
		return false
	}
	g.pending[id] = true
	return true
}

// Release frees the slot for a record. Safe to call for an unclaimed id.
func (g *InFlightGuard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, id)
}
