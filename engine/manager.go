package engine

import (
	"sync"

	"github.com/google/uuid"
)

// TenantRouterManager owns the set of state machines belonging to one
// tenant. It creates them on demand and is the unit of shutdown: releasing
// a tenant releases every router it owns.
type TenantRouterManager struct {
	TenantID uuid.UUID

	mu       sync.Mutex
	machines map[uuid.UUID]RouterStateMachine

	factory               StateMachineFactory
	queueWarningThreshold int
	rebootErrorThreshold  int
}

// NewTenantRouterManager constructs a manager for tenantID. factory builds
// new state machines on first reference to a router.
func NewTenantRouterManager(tenantID uuid.UUID, factory StateMachineFactory, queueWarningThreshold, rebootErrorThreshold int) *TenantRouterManager {
	return &TenantRouterManager{
		TenantID:              tenantID,
		machines:              make(map[uuid.UUID]RouterStateMachine),
		factory:               factory,
		queueWarningThreshold: queueWarningThreshold,
		rebootErrorThreshold:  rebootErrorThreshold,
	}
}

// stateMachineRef pairs a state machine with the router id it was created
// for, since the machine itself is an opaque interface value.
type stateMachineRef struct {
	routerID uuid.UUID
	sm       RouterStateMachine
}

// GetStateMachines returns the state machines that should receive event.
// A targeted event (RouterID set) resolves to exactly one state machine,
// created on first reference. Broadcast routing (no RouterID, used by
// WORKERS_DEBUG-style introspection) is not performed here — callers that
// need every machine for a tenant should range over Snapshot instead.
func (m *TenantRouterManager) GetStateMachines(event Event) []stateMachineRef {
	if !event.HasRouterID() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.machines[event.RouterID]
	if !ok {
		sm = m.factory(event.TenantID, event.RouterID)
		m.machines[event.RouterID] = sm
	}
	return []stateMachineRef{{routerID: event.RouterID, sm: sm}}
}

// Snapshot returns every currently known (router id, state machine) pair,
// used for introspection (WORKERS_DEBUG) and shutdown.
func (m *TenantRouterManager) Snapshot() []stateMachineRef {
	m.mu.Lock()
	defer m.mu.Unlock()

	refs := make([]stateMachineRef, 0, len(m.machines))
	for routerID, sm := range m.machines {
		refs = append(refs, stateMachineRef{routerID: routerID, sm: sm})
	}
	return refs
}

// RouterCount reports how many routers this tenant currently owns.
func (m *TenantRouterManager) RouterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.machines)
}

// Shutdown drops every state machine reference. The state machine interface
// defines no teardown hook, and Shutdown calls nothing on the machines it
// drops.
func (m *TenantRouterManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.machines = make(map[uuid.UUID]RouterStateMachine)
}
