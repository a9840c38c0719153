package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DebugEntry names a debugged tenant or router and the reason it was put
// into debug mode.
type DebugEntry struct {
	ID     uuid.UUID
	Reason string
}

// DebugStore is the black-box persistent store of global/tenant/router debug
// flags. Implementations may be backed by a small embedded database or a
// filesystem directory convention; the engine calls it on every inbound
// event, so latency must be low (see CachedDebugStore).
type DebugStore interface {
	GlobalDebug() (bool, string, error)
	TenantInDebug(tenantID uuid.UUID) (bool, string, error)
	RouterInDebug(routerID uuid.UUID) (bool, string, error)
	TenantsInDebug() ([]DebugEntry, error)
	RoutersInDebug() ([]DebugEntry, error)

	EnableGlobalDebug(reason string) error
	DisableGlobalDebug() error
	EnableTenantDebug(tenantID uuid.UUID, reason string) error
	DisableTenantDebug(tenantID uuid.UUID) error
	EnableRouterDebug(routerID uuid.UUID, reason string) error
	DisableRouterDebug(routerID uuid.UUID) error
}

type cacheEntry struct {
	enabled   bool
	reason    string
	expiresAt time.Time
}

// CachedDebugStore decorates a DebugStore with a short-TTL in-memory mirror
// of query results, addressing the per-event latency this interface implies.
// Every local mutation invalidates the affected entry immediately rather
// than waiting out the TTL.
type CachedDebugStore struct {
	backing DebugStore
	ttl     time.Duration

	mu       sync.Mutex
	global   *cacheEntry
	tenants  map[uuid.UUID]*cacheEntry
	routers  map[uuid.UUID]*cacheEntry
}

// NewCachedDebugStore wraps backing with an in-memory cache whose entries
// expire after ttl. A ttl of zero disables caching (every call passes
// through).
func NewCachedDebugStore(backing DebugStore, ttl time.Duration) *CachedDebugStore {
	return &CachedDebugStore{
		backing: backing,
		ttl:     ttl,
		tenants: make(map[uuid.UUID]*cacheEntry),
		routers: make(map[uuid.UUID]*cacheEntry),
	}
}

// SetTTL changes the cache lifetime applied to entries populated from now
// on; it does not retroactively shorten or extend entries already cached.
func (c *CachedDebugStore) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

func (c *CachedDebugStore) GlobalDebug() (bool, string, error) {
	c.mu.Lock()
	if c.global != nil && time.Now().Before(c.global.expiresAt) {
		enabled, reason := c.global.enabled, c.global.reason
		c.mu.Unlock()
		return enabled, reason, nil
	}
	c.mu.Unlock()

	enabled, reason, err := c.backing.GlobalDebug()
	if err != nil {
		return false, "", err
	}

	c.mu.Lock()
	c.global = &cacheEntry{enabled: enabled, reason: reason, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return enabled, reason, nil
}

func (c *CachedDebugStore) TenantInDebug(tenantID uuid.UUID) (bool, string, error) {
	c.mu.Lock()
	if e, ok := c.tenants[tenantID]; ok && time.Now().Before(e.expiresAt) {
		enabled, reason := e.enabled, e.reason
		c.mu.Unlock()
		return enabled, reason, nil
	}
	c.mu.Unlock()

	enabled, reason, err := c.backing.TenantInDebug(tenantID)
	if err != nil {
		return false, "", err
	}

	c.mu.Lock()
	c.tenants[tenantID] = &cacheEntry{enabled: enabled, reason: reason, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return enabled, reason, nil
}

func (c *CachedDebugStore) RouterInDebug(routerID uuid.UUID) (bool, string, error) {
	c.mu.Lock()
	if e, ok := c.routers[routerID]; ok && time.Now().Before(e.expiresAt) {
		enabled, reason := e.enabled, e.reason
		c.mu.Unlock()
		return enabled, reason, nil
	}
	c.mu.Unlock()

	enabled, reason, err := c.backing.RouterInDebug(routerID)
	if err != nil {
		return false, "", err
	}

	c.mu.Lock()
	c.routers[routerID] = &cacheEntry{enabled: enabled, reason: reason, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return enabled, reason, nil
}

func (c *CachedDebugStore) TenantsInDebug() ([]DebugEntry, error) {
	return c.backing.TenantsInDebug()
}

func (c *CachedDebugStore) RoutersInDebug() ([]DebugEntry, error) {
	return c.backing.RoutersInDebug()
}

func (c *CachedDebugStore) EnableGlobalDebug(reason string) error {
	if err := c.backing.EnableGlobalDebug(reason); err != nil {
		return err
	}
	c.mu.Lock()
	c.global = nil
	c.mu.Unlock()
	return nil
}

func (c *CachedDebugStore) DisableGlobalDebug() error {
	if err := c.backing.DisableGlobalDebug(); err != nil {
		return err
	}
	c.mu.Lock()
	c.global = nil
	c.mu.Unlock()
	return nil
}

func (c *CachedDebugStore) EnableTenantDebug(tenantID uuid.UUID, reason string) error {
	if err := c.backing.EnableTenantDebug(tenantID, reason); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.tenants, tenantID)
	c.mu.Unlock()
	return nil
}

func (c *CachedDebugStore) DisableTenantDebug(tenantID uuid.UUID) error {
	if err := c.backing.DisableTenantDebug(tenantID); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.tenants, tenantID)
	c.mu.Unlock()
	return nil
}

func (c *CachedDebugStore) EnableRouterDebug(routerID uuid.UUID, reason string) error {
	if err := c.backing.EnableRouterDebug(routerID, reason); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.routers, routerID)
	c.mu.Unlock()
	return nil
}

func (c *CachedDebugStore) DisableRouterDebug(routerID uuid.UUID) error {
	if err := c.backing.DisableRouterDebug(routerID); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.routers, routerID)
	c.mu.Unlock()
	return nil
}
