package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseTargetWildcard(t *testing.T) {
	tgt, err := parseTarget("*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tgt.wildcard {
		t.Fatalf("expected wildcard target")
	}
}

func TestParseTargetTenantAndRouter(t *testing.T) {
	tenantID, routerID := uuid.New(), uuid.New()
	raw := tenantID.String() + "." + routerID.String()

	tgt, err := parseTarget(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.tenantID != tenantID || tgt.routerID != routerID {
		t.Fatalf("unexpected parse result: %+v", tgt)
	}
}

func TestParseTargetCompactUUID(t *testing.T) {
	tenantID := uuid.New()
	compact := strings.ReplaceAll(tenantID.String(), "-", "")

	tgt, err := parseTarget(compact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tgt.tenantID != tenantID {
		t.Fatalf("expected compact form to normalize to %s, got %s", tenantID, tgt.tenantID)
	}
}

func TestIngressHandleMessageDeliversPlainEvent(t *testing.T) {
	sm := newFakeStateMachine()
	factory := func(tenantID, routerID uuid.UUID) RouterStateMachine { return sm }
	e := NewEngine(testConfig(), factory, newFakeDebugStore())
	e.Start()
	ingress := NewIngress(e, nil)
	defer ingress.Shutdown()

	tenantID, routerID := uuid.New(), uuid.New()
	event := NewEvent(tenantID, routerID, KindUpdate, nil)

	if _, err := ingress.HandleMessage(tenantID.String()+"."+routerID.String(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, time.Second, func() bool { return sm.updateCount() >= 1 })
}

func TestIngressRejectsWildcardForNonCommand(t *testing.T) {
	e := newTestEngine()
	e.Start()
	ingress := NewIngress(e, nil)
	defer ingress.Shutdown()

	event := NewEvent(uuid.Nil, uuid.Nil, KindUpdate, nil)
	if _, err := ingress.HandleMessage("*", event); err == nil {
		t.Fatalf("expected an error for a wildcard target on a non-command event")
	}
}

func TestIngressGlobalDebugDropsPlainEventsButAllowsCommands(t *testing.T) {
	store := newFakeDebugStore()
	store.EnableGlobalDebug("freeze")

	sm := newFakeStateMachine()
	factory := func(tenantID, routerID uuid.UUID) RouterStateMachine { return sm }
	e := NewEngine(testConfig(), factory, store)
	e.Start()
	ingress := NewIngress(e, nil)
	defer ingress.Shutdown()

	tenantID, routerID := uuid.New(), uuid.New()
	plain := NewEvent(tenantID, routerID, KindUpdate, nil)
	if _, err := ingress.HandleMessage(tenantID.String()+"."+routerID.String(), plain); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if sm.updateCount() != 0 {
		t.Fatalf("expected plain event to be dropped while global debug is on")
	}

	disable := NewEvent(uuid.Nil, uuid.Nil, KindCommand, map[string]any{
		"command": CommandGlobalDebug, "enable": false,
	})
	if _, err := ingress.HandleMessage("*", disable); err != nil {
		t.Fatalf("expected GLOBAL_DEBUG disable command to pass admission, got error: %v", err)
	}
}

func TestIngressRouterDebugDropsPlainEventBeforeSendMessage(t *testing.T) {
	store := newFakeDebugStore()
	tenantID, routerID := uuid.New(), uuid.New()
	store.EnableRouterDebug(routerID, "maintenance window")

	sm := newFakeStateMachine()
	factory := func(tenantID, routerID uuid.UUID) RouterStateMachine { return sm }
	e := NewEngine(testConfig(), factory, store)
	e.Start()
	ingress := NewIngress(e, nil)
	defer ingress.Shutdown()

	plain := NewEvent(tenantID, routerID, KindUpdate, nil)
	if _, err := ingress.HandleMessage(tenantID.String()+"."+routerID.String(), plain); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	sm.mu.Lock()
	sawSendMessage := len(sm.lastEvents) != 0
	sm.mu.Unlock()
	if sawSendMessage {
		t.Fatalf("expected event for a router in debug mode to be dropped before SendMessage")
	}
	if sm.updateCount() != 0 {
		t.Fatalf("expected event for a router in debug mode to never reach Update")
	}
}

func TestIngressHandleMessageAfterShutdownFails(t *testing.T) {
	e := newTestEngine()
	e.Start()
	ingress := NewIngress(e, nil)
	if err := ingress.Shutdown(); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	_, err := ingress.HandleMessage("*", NewEvent(uuid.Nil, uuid.Nil, KindCommand, map[string]any{"command": CommandWorkersDebug}))
	if err == nil {
		t.Fatalf("expected HandleMessage to reject messages after shutdown")
	}
}
