package engine

import "github.com/google/uuid"

// RouterStateMachine is the per-router reconciliation automaton. Its body is
// a black box to the engine; only these three contracts matter for
// scheduling correctness.
type RouterStateMachine interface {
	// SendMessage appends event to the state machine's private inbox and
	// reports whether the state machine now desires an Update call. The
	// engine calls it with deliverMu held, which serializes it against other
	// deliveries but not against Update: it MUST be safe to call while an
	// Update on the same machine is in progress.
	SendMessage(event Event) bool

	// Update executes one reconciliation step against the external compute
	// and network APIs reachable through wctx. It may block. An error is
	// logged by the caller; the state machine must remain usable afterward.
	Update(wctx *WorkerContext) error

	// HasMoreWork reports whether another Update call would do useful work.
	// It must be cheap and side-effect-free.
	HasMoreWork() bool
}

// StateMachineFactory constructs the state machine for a newly seen router.
type StateMachineFactory func(tenantID, routerID uuid.UUID) RouterStateMachine

// noopStateMachine discards every event and never requests an Update. It
// exists so cmd/rugengine can start the engine before a real reconciliation
// implementation is registered; production deployments supply their own
// StateMachineFactory.
type noopStateMachine struct{}

func (noopStateMachine) SendMessage(Event) bool           { return false }
func (noopStateMachine) Update(*WorkerContext) error       { return nil }
func (noopStateMachine) HasMoreWork() bool                 { return false }

// NoopStateMachineFactory returns a StateMachineFactory whose state machines
// never act on anything. It is the engine's placeholder default, not a
// router reconciliation implementation — router-specific logic is supplied
// by the embedding application.
func NoopStateMachineFactory() StateMachineFactory {
	return func(uuid.UUID, uuid.UUID) RouterStateMachine { return noopStateMachine{} }
}
