package engine

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// fakeStateMachine is a minimal RouterStateMachine used by engine tests. It
// counts Update calls and lets the test script how many times HasMoreWork
// should report true after each Update. inFlight/sawOverlap detect whether
// the scheduler ever let two Update calls run concurrently for this machine,
// which would be a guard-logic bug.
type fakeStateMachine struct {
	mu sync.Mutex

	updates       int
	lastEvents    []Event
	pendingAfter  []bool // HasMoreWork() return value queued per Update call
	updateErr     error
	updateBlock   chan struct{} // if non-nil, Update waits on this channel
	panicOnUpdate bool          // if true, Update panics instead of returning, once

	inFlight   int32
	sawOverlap atomic.Bool

	hasMoreWorkCalls int32
}

func newFakeStateMachine() *fakeStateMachine {
	return &fakeStateMachine{}
}

func (f *fakeStateMachine) SendMessage(event Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEvents = append(f.lastEvents, event)
	return true
}

func (f *fakeStateMachine) Update(wctx *WorkerContext) error {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		f.sawOverlap.Store(true)
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	if f.updateBlock != nil {
		<-f.updateBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.panicOnUpdate {
		f.panicOnUpdate = false
		panic("simulated router update panic")
	}
	return f.updateErr
}

func (f *fakeStateMachine) HasMoreWork() bool {
	atomic.AddInt32(&f.hasMoreWorkCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pendingAfter) == 0 {
		return false
	}
	next := f.pendingAfter[0]
	f.pendingAfter = f.pendingAfter[1:]
	return next
}

func (f *fakeStateMachine) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// fakeDebugStore is an in-memory DebugStore used by tests, avoiding the
// filesystem or sqlite for pure scheduling/dispatch assertions.
type fakeDebugStore struct {
	mu      sync.Mutex
	global  bool
	reason  string
	tenants map[uuid.UUID]string
	routers map[uuid.UUID]string
}

func newFakeDebugStore() *fakeDebugStore {
	return &fakeDebugStore{
		tenants: make(map[uuid.UUID]string),
		routers: make(map[uuid.UUID]string),
	}
}

func (f *fakeDebugStore) GlobalDebug() (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.global, f.reason, nil
}

func (f *fakeDebugStore) TenantInDebug(tenantID uuid.UUID) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.tenants[tenantID]
	return ok, reason, nil
}

func (f *fakeDebugStore) RouterInDebug(routerID uuid.UUID) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.routers[routerID]
	return ok, reason, nil
}

func (f *fakeDebugStore) TenantsInDebug() ([]DebugEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DebugEntry
	for id, reason := range f.tenants {
		out = append(out, DebugEntry{ID: id, Reason: reason})
	}
	return out, nil
}

func (f *fakeDebugStore) RoutersInDebug() ([]DebugEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []DebugEntry
	for id, reason := range f.routers {
		out = append(out, DebugEntry{ID: id, Reason: reason})
	}
	return out, nil
}

func (f *fakeDebugStore) EnableGlobalDebug(reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global, f.reason = true, reason
	return nil
}

func (f *fakeDebugStore) DisableGlobalDebug() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global, f.reason = false, ""
	return nil
}

func (f *fakeDebugStore) EnableTenantDebug(tenantID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tenants[tenantID] = reason
	return nil
}

func (f *fakeDebugStore) DisableTenantDebug(tenantID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tenants, tenantID)
	return nil
}

func (f *fakeDebugStore) EnableRouterDebug(routerID uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routers[routerID] = reason
	return nil
}

func (f *fakeDebugStore) DisableRouterDebug(routerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.routers, routerID)
	return nil
}
