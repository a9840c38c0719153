package engine

import (
	"sync"

	"github.com/google/uuid"
)

// routerGuard is a boolean guard rather than an OS mutex. It represents
// "this router's state machine is queued or running", not a critical
// section: the goroutine that acquires it (a producer in deliver, or a
// worker re-enqueueing its own router) is in general not the goroutine that
// releases it (a worker, or the ROUTER_MANAGE command handler running on
// yet another goroutine). sync.Mutex permits
// Unlock from a different goroutine than Lock, but panics on a double
// Unlock — and ROUTER_MANAGE must be able to clear a guard unconditionally,
// including one nobody currently holds. A boolean guard behind its own
// mutex makes that release idempotent.
type routerGuard struct {
	mu     sync.Mutex
	locked bool
}

// tryAcquire attempts to claim the guard without blocking. It returns true
// iff the caller now owns the guard.
func (g *routerGuard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return false
	}
	g.locked = true
	return true
}

// release clears the guard unconditionally. Safe to call even if the guard
// is already free — this is what lets ROUTER_MANAGE release a lock it may
// never have acquired itself.
func (g *routerGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked = false
}

// routerLocks is the router_id → guard map. It must only be mutated
// (new-entry initialization included) while the owning engine holds
// deliverMu; see scheduler.go.
type routerLocks struct {
	guards map[uuid.UUID]*routerGuard
}

func newRouterLocks() *routerLocks {
	return &routerLocks{guards: make(map[uuid.UUID]*routerGuard)}
}

// guardFor returns the guard for routerID, creating it on first use. Callers
// must already hold deliverMu.
func (l *routerLocks) guardFor(routerID uuid.UUID) *routerGuard {
	g, ok := l.guards[routerID]
	if !ok {
		g = &routerGuard{}
		l.guards[routerID] = g
	}
	return g
}
