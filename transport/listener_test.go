package transport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusnet/rugengine/config"
	"github.com/nimbusnet/rugengine/engine"
)

func TestRunDeliversMessagesUntilClosed(t *testing.T) {
	cfg := &config.Config{NumWorkers: 1, WorkerDequeueTimeout: 1, ShutdownJoinTimeout: 1}

	e := engine.NewEngine(cfg, func(tenantID, routerID uuid.UUID) engine.RouterStateMachine {
		return noopStateMachine{}
	}, nil)
	e.Start()
	defer e.Shutdown()

	ingress := engine.NewIngress(e, nil)
	listener := NewChannelListener(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, listener, ingress) }()

	tenantID, routerID := uuid.New(), uuid.New()
	listener.Publish(Message{
		Target: tenantID.String() + "." + routerID.String(),
		Event:  engine.NewEvent(tenantID, routerID, engine.KindUpdate, nil),
	})

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && err != context.Canceled {
			t.Fatalf("unexpected error from Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}

// noopStateMachine satisfies engine.RouterStateMachine with no behavior,
// enough to exercise the transport → ingress → engine wiring.
type noopStateMachine struct{}

func (noopStateMachine) SendMessage(engine.Event) bool      { return true }
func (noopStateMachine) Update(*engine.WorkerContext) error { return nil }
func (noopStateMachine) HasMoreWork() bool                  { return false }
