package engine

import (
	"github.com/google/uuid"

	"github.com/nimbusnet/rugengine/errors"
	"github.com/nimbusnet/rugengine/logger"
)

// ConfigReloader is the narrow hook the engine needs into the configuration
// layer to service CONFIG_RELOAD. It is satisfied by config.Load plus a
// setter the caller supplies; kept as an interface here so this package does
// not import cmd-level wiring.
type ConfigReloader interface {
	Reload() error
}

// DispatchCommand executes a COMMAND-kind event and returns any result the
// caller should hand back to the transport (only WORKERS_DEBUG produces one).
func (e *Engine) DispatchCommand(event Event, reloader ConfigReloader) (any, error) {
	cmd, ok := event.Command()
	if !ok {
		return nil, errors.New("command event is missing a command field")
	}

	switch cmd {
	case CommandRouterUpdate:
		e.deliver(event.WithCrud(KindUpdate))
		return nil, nil

	case CommandRouterRebuild:
		e.deliver(event.WithCrud(KindRebuild))
		return nil, nil

	case CommandRouterDebug:
		return nil, e.handleRouterDebug(event)

	case CommandRouterManage:
		return nil, e.handleRouterManage(event)

	case CommandTenantDebug:
		return nil, e.handleTenantDebug(event)

	case CommandTenantManage:
		return nil, e.handleTenantManage(event)

	case CommandWorkersDebug:
		statuses := e.Snapshot()
		e.queueMu.RLock()
		queueDepth := len(e.workQueue)
		e.queueMu.RUnlock()
		e.deliverMu.Lock()
		tenantCount := len(e.tenants)
		e.deliverMu.Unlock()
		var tenantsInDebug, routersInDebug []DebugEntry
		if e.debugStore != nil {
			tenantsInDebug, _ = e.debugStore.TenantsInDebug()
			routersInDebug, _ = e.debugStore.RoutersInDebug()
		}
		logger.Infow("workers debug", "queue_depth", queueDepth, "tenant_managers", tenantCount,
			"workers", statuses, "tenants_in_debug", tenantsInDebug, "routers_in_debug", routersInDebug)
		return statuses, nil

	case CommandGlobalDebug:
		return nil, e.handleGlobalDebug(event)

	case CommandConfigReload:
		if reloader == nil {
			return nil, errors.New("no config reloader configured")
		}
		return nil, reloader.Reload()

	default:
		return nil, errors.Newf("unrecognized command %q", cmd)
	}
}

func (e *Engine) enabled(event Event) bool {
	v, _ := event.Body["enable"].(bool)
	return v
}

// handleGlobalDebug sets the global flag for enable=true and clears it for
// enable=false; a missing or non-boolean enable is logged and changes nothing.
func (e *Engine) handleGlobalDebug(event Event) error {
	enable, ok := event.Body["enable"].(bool)
	if !ok {
		logger.Warnw("GLOBAL_DEBUG ignored: enable must be true or false", "enable", event.Body["enable"])
		return nil
	}
	if enable {
		return e.debugStore.EnableGlobalDebug(event.Reason())
	}
	return e.debugStore.DisableGlobalDebug()
}

func (e *Engine) handleTenantDebug(event Event) error {
	if event.TenantID == uuid.Nil || Wildcards[event.TenantID.String()] {
		return errors.New("TENANT_DEBUG requires a specific tenant id")
	}
	if e.enabled(event) {
		return e.debugStore.EnableTenantDebug(event.TenantID, event.Reason())
	}
	return e.debugStore.DisableTenantDebug(event.TenantID)
}

func (e *Engine) handleRouterDebug(event Event) error {
	if !event.HasRouterID() {
		return errors.New("ROUTER_DEBUG requires a specific router id")
	}
	if e.enabled(event) {
		return e.debugStore.EnableRouterDebug(event.RouterID, event.Reason())
	}
	return e.debugStore.DisableRouterDebug(event.RouterID)
}

// handleTenantManage administers a tenant's set of router state machines.
// body["action"] selects the operation; "shutdown" (the default) clears the
// tenant's debug flag and releases every state machine the tenant owns so
// the next event recreates them from scratch, used to recover a tenant
// stuck in a bad in-memory or debug state without restarting the process.
func (e *Engine) handleTenantManage(event Event) error {
	if event.TenantID == uuid.Nil {
		return errors.New("TENANT_MANAGE requires a specific tenant id")
	}

	action, _ := event.Body["action"].(string)
	if action == "" {
		action = "shutdown"
	}

	switch action {
	case "shutdown":
		if err := e.debugStore.DisableTenantDebug(event.TenantID); err != nil {
			return err
		}

		e.deliverMu.Lock()
		defer e.deliverMu.Unlock()

		mgr, ok := e.tenants[event.TenantID]
		if !ok {
			return nil
		}
		mgr.Shutdown()
		delete(e.tenants, event.TenantID)
		return nil
	default:
		return errors.Newf("unrecognized TENANT_MANAGE action %q", action)
	}
}

// handleRouterManage administers a single router's guard, debug flag, and
// schedule. body["action"] selects the operation:
//
//	"release" (default) clears the router's debug flag, forcibly clears its
//	  guard even if nobody holds it, and reschedules the state machine if it
//	  still has pending work — recovery from a worker that died without
//	  reaching the finally block, or an operator-triggered unstick of a
//	  router stuck in debug mode.
//	"forget" drops the state machine entirely so the next event recreates
//	  it from scratch.
func (e *Engine) handleRouterManage(event Event) error {
	if !event.HasRouterID() {
		return errors.New("ROUTER_MANAGE requires a specific router id")
	}

	action, _ := event.Body["action"].(string)
	if action == "" {
		action = "release"
	}

	switch action {
	case "release":
		if err := e.debugStore.DisableRouterDebug(event.RouterID); err != nil {
			return err
		}

		e.deliverMu.Lock()
		defer e.deliverMu.Unlock()

		guard := e.locks.guardFor(event.RouterID)
		guard.release()
		logger.Infow("router guard released and debug flag cleared by ROUTER_MANAGE",
			logger.FieldRouterID, event.RouterID.String())
		mgr, ok := e.tenants[event.TenantID]
		if !ok {
			return nil
		}
		for _, ref := range mgr.Snapshot() {
			if ref.routerID == event.RouterID && ref.sm.HasMoreWork() {
				e.tryEnqueueLocked(event.TenantID, event.RouterID, ref.sm)
			}
		}
		return nil
	case "forget":
		e.deliverMu.Lock()
		defer e.deliverMu.Unlock()

		mgr, ok := e.tenants[event.TenantID]
		if !ok {
			return nil
		}
		mgr.mu.Lock()
		delete(mgr.machines, event.RouterID)
		mgr.mu.Unlock()
		return nil
	default:
		return errors.Newf("unrecognized ROUTER_MANAGE action %q", action)
	}
}
