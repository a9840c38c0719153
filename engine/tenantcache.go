package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TenantRouterCache memoizes tenant → default-router lookups against the
// network API. It is populated lazily and never invalidated during normal
// operation: staleness after a tenant's default router changes is an
// accepted race, restored by the next event that carries an explicit
// router_id. Used only from the ingress goroutine in this design; the
// RWMutex exists for defensive symmetry with the rest of the engine, not
// because concurrent writers are expected.
type TenantRouterCache struct {
	mu sync.RWMutex
	m  map[uuid.UUID]uuid.UUID
}

// NewTenantRouterCache returns an empty cache.
func NewTenantRouterCache() *TenantRouterCache {
	return &TenantRouterCache{m: make(map[uuid.UUID]uuid.UUID)}
}

// GetByTenant returns the cached router for tenantID, consulting the
// network API on a miss and caching a non-nil result. The bool return is
// false when no router could be resolved (cache miss followed by a lookup
// miss), distinct from an error.
func (c *TenantRouterCache) GetByTenant(ctx context.Context, tenantID uuid.UUID, wctx *WorkerContext) (uuid.UUID, bool, error) {
	c.mu.RLock()
	if routerID, ok := c.m[tenantID]; ok {
		c.mu.RUnlock()
		return routerID, true, nil
	}
	c.mu.RUnlock()

	routerID, err := wctx.Network.LookupDefaultRouter(ctx, tenantID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if routerID == uuid.Nil {
		return uuid.Nil, false, nil
	}

	c.mu.Lock()
	c.m[tenantID] = routerID
	c.mu.Unlock()
	return routerID, true, nil
}
