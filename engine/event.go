// Package engine implements the dispatch-and-execution core of the router
// orchestrator: the ingress entry point, per-tenant router managers, the
// worker-pool scheduler, and the command dispatcher.
package engine

import (
	"github.com/google/uuid"
)

// Kind discriminates the nature of a change described by an Event.
type Kind string

const (
	KindCreate  Kind = "CREATE"
	KindUpdate  Kind = "UPDATE"
	KindDelete  Kind = "DELETE"
	KindRebuild Kind = "REBUILD"
	KindCommand Kind = "COMMAND"
	KindPoll    Kind = "POLL"
)

// Command discriminators carried in body["command"] of a KindCommand event.
const (
	CommandRouterUpdate  = "ROUTER_UPDATE"
	CommandRouterRebuild = "ROUTER_REBUILD"
	CommandRouterDebug   = "ROUTER_DEBUG"
	CommandRouterManage  = "ROUTER_MANAGE"
	CommandTenantDebug   = "TENANT_DEBUG"
	CommandTenantManage  = "TENANT_MANAGE"
	CommandWorkersDebug  = "WORKERS_DEBUG"
	CommandGlobalDebug   = "GLOBAL_DEBUG"
	CommandConfigReload  = "CONFIG_RELOAD"
)

// Wildcards holds target strings meaning "every tenant". Commands that would
// mutate debug state for a specific tenant or router reject a wildcard target.
var Wildcards = map[string]bool{
	"*": true,
	"":  true,
}

// Event is an immutable description of a desired change or observation.
// Once placed in any inbox its fields never change; rewrites go through
// With* methods that return a new value.
type Event struct {
	TenantID uuid.UUID
	RouterID uuid.UUID
	Crud     Kind
	Body     map[string]any
}

// NewEvent constructs an Event. body may be nil, in which case an empty map
// is used so callers can always index Body safely.
func NewEvent(tenantID, routerID uuid.UUID, crud Kind, body map[string]any) Event {
	if body == nil {
		body = map[string]any{}
	}
	return Event{TenantID: tenantID, RouterID: routerID, Crud: crud, Body: body}
}

// HasRouterID reports whether the event already names a router, as opposed
// to needing resolution via the tenant router cache.
func (e Event) HasRouterID() bool {
	return e.RouterID != uuid.Nil
}

// WithRouterID returns a copy of e with RouterID set, leaving e untouched.
func (e Event) WithRouterID(routerID uuid.UUID) Event {
	return Event{
		TenantID: e.TenantID,
		RouterID: routerID,
		Crud:     e.Crud,
		Body:     e.Body,
	}
}

// WithCrud returns a copy of e with a different Crud kind and an empty Body,
// used when synthesizing ROUTER_UPDATE/ROUTER_REBUILD commands into plain
// events.
func (e Event) WithCrud(crud Kind) Event {
	return Event{
		TenantID: e.TenantID,
		RouterID: e.RouterID,
		Crud:     crud,
		Body:     map[string]any{},
	}
}

// Command returns the body["command"] discriminator of a COMMAND event.
func (e Event) Command() (string, bool) {
	v, ok := e.Body["command"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Reason returns body["reason"], used by debug-toggling commands.
func (e Event) Reason() string {
	if v, ok := e.Body["reason"].(string); ok {
		return v
	}
	return ""
}
