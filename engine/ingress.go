package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nimbusnet/rugengine/errors"
	"github.com/nimbusnet/rugengine/logger"
)

// Ingress is the single entry point transport adapters call into: one
// HandleMessage per inbound message, regardless of transport. It resolves
// the routing target to tenant/router ids, applies the debug-mode admission
// filter, and either dispatches a COMMAND or delivers a plain event to the
// scheduler.
type Ingress struct {
	engine   *Engine
	reloader ConfigReloader
	closed   atomic.Bool
}

// NewIngress wraps engine with the message-handling entry point. reloader
// may be nil if CONFIG_RELOAD is never expected.
func NewIngress(engine *Engine, reloader ConfigReloader) *Ingress {
	return &Ingress{engine: engine, reloader: reloader}
}

// normalizeUUID parses raw as a UUID, tolerating the compact (no-dash) form
// some transports deliver routing keys in by reformatting it into canonical
// dashed form before handing it to google/uuid.
func normalizeUUID(raw string) (uuid.UUID, error) {
	if id, err := uuid.Parse(raw); err == nil {
		return id, nil
	}
	compact := strings.ReplaceAll(raw, "-", "")
	if len(compact) != 32 {
		return uuid.Nil, errors.Newf("%q is not a valid id", raw)
	}
	dashed := fmt.Sprintf("%s-%s-%s-%s-%s", compact[0:8], compact[8:12], compact[12:16], compact[16:20], compact[20:32])
	return uuid.Parse(dashed)
}

// target is the parsed form of a transport routing key: "<tenant>" or
// "<tenant>.<router>". A bare "*" (or empty string) tenant segment marks a
// broadcast addressed to every tenant, accepted only for COMMAND events.
type target struct {
	tenantID  uuid.UUID
	routerID  uuid.UUID
	wildcard  bool
}

func parseTarget(raw string) (target, error) {
	parts := strings.SplitN(raw, ".", 2)

	tenantPart := parts[0]
	if Wildcards[tenantPart] {
		return target{wildcard: true}, nil
	}

	tenantID, err := normalizeUUID(tenantPart)
	if err != nil {
		return target{}, errors.Wrapf(err, "invalid tenant in target %q", raw)
	}

	t := target{tenantID: tenantID}
	if len(parts) == 2 && parts[1] != "" {
		routerID, err := normalizeUUID(parts[1])
		if err != nil {
			return target{}, errors.Wrapf(err, "invalid router in target %q", raw)
		}
		t.routerID = routerID
	}
	return t, nil
}

// HandleMessage is the top-level entry point for one inbound message. rawTarget
// is the transport routing key; event carries the payload. It returns a
// result value only for introspection commands (WORKERS_DEBUG).
func (i *Ingress) HandleMessage(rawTarget string, event Event) (any, error) {
	if i.closed.Load() {
		return nil, errors.New("ingress is shutting down, message rejected")
	}

	t, err := parseTarget(rawTarget)
	if err != nil {
		return nil, err
	}

	if t.wildcard && event.Crud != KindCommand {
		return nil, errors.New("only COMMAND events may address a wildcard target")
	}
	if !t.wildcard {
		event.TenantID = t.tenantID
		if t.routerID != uuid.Nil {
			event.RouterID = t.routerID
		}
	}

	if event.Crud != KindCommand && !event.HasRouterID() {
		routerID, ok, err := i.engine.tenantCache.GetByTenant(context.Background(), event.TenantID, i.engine.cacheWctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve tenant's default router")
		}
		if !ok {
			return nil, errors.Newf("tenant %s has no resolvable default router", event.TenantID)
		}
		event = event.WithRouterID(routerID)
	}

	if !i.shouldProcess(event) {
		logger.Debugw("event dropped by debug-mode admission filter",
			logger.FieldTenantID, event.TenantID.String(),
			logger.FieldRouterID, event.RouterID.String())
		return nil, nil
	}

	if event.Crud == KindCommand {
		// ROUTER_UPDATE and ROUTER_REBUILD re-enter as plain events so they
		// take the same admission filter and delivery path as any other event.
		switch cmd, _ := event.Command(); cmd {
		case CommandRouterUpdate:
			return i.HandleMessage(rawTarget, event.WithCrud(KindUpdate))
		case CommandRouterRebuild:
			return i.HandleMessage(rawTarget, event.WithCrud(KindRebuild))
		}
		return i.engine.DispatchCommand(event, i.reloader)
	}

	i.engine.deliver(event)
	return nil, nil
}

// shouldProcess is the admission-time debug-mode check. COMMAND events
// always pass — otherwise an operator could never send GLOBAL_DEBUG/
// TENANT_DEBUG/ROUTER_DEBUG to turn debug mode back off. Plain events are
// dropped here at all three scopes (global, tenant, router) as an
// optimization; the worker re-checks RouterInDebug right before calling
// Update, covering the race where debug mode toggles between admission and
// execution. A debug store error also drops the event (fail closed).
func (i *Ingress) shouldProcess(event Event) bool {
	if event.Crud == KindCommand {
		return true
	}
	if i.engine.debugStore == nil {
		return true
	}
	if global, _, err := i.engine.debugStore.GlobalDebug(); err != nil || global {
		return false
	}
	if event.TenantID != uuid.Nil {
		if inDebug, _, err := i.engine.debugStore.TenantInDebug(event.TenantID); err != nil || inDebug {
			return false
		}
	}
	if event.HasRouterID() {
		if inDebug, _, err := i.engine.debugStore.RouterInDebug(event.RouterID); err != nil || inDebug {
			return false
		}
	}
	return true
}

// Shutdown runs the graceful-shutdown sequence:
//  1. stop accepting new messages (HandleMessage starts returning an error)
//  2. drain nothing further from the transport (the caller's responsibility
//     — Ingress only guarantees it will not enqueue more work)
//  3. signal the worker pool to stop, discarding whatever is still queued
//  4. join every worker goroutine up to the configured timeout
//  5. release every tenant's state machines (under deliverMu, since the
//     process is exiting there is no contention to economize on)
//  6. close the debug store if it holds a resource (sqlite handle, watcher)
//  7. report the first error encountered, having still attempted every step
func (i *Ingress) Shutdown() error {
	i.closed.Store(true)

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(i.engine.Shutdown())

	i.engine.deliverMu.Lock()
	for tenantID, mgr := range i.engine.tenants {
		mgr.Shutdown()
		delete(i.engine.tenants, tenantID)
	}
	i.engine.deliverMu.Unlock()

	if closer, ok := i.engine.debugStore.(interface{ Close() error }); ok {
		record(closer.Close())
	}

	return firstErr
}
