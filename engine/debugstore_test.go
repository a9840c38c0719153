package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// countingDebugStore wraps fakeDebugStore to count calls, used to assert the
// cache actually avoids hitting the backing store.
type countingDebugStore struct {
	*fakeDebugStore
	globalCalls int
	routerCalls int
}

func (c *countingDebugStore) GlobalDebug() (bool, string, error) {
	c.globalCalls++
	return c.fakeDebugStore.GlobalDebug()
}

func (c *countingDebugStore) RouterInDebug(routerID uuid.UUID) (bool, string, error) {
	c.routerCalls++
	return c.fakeDebugStore.RouterInDebug(routerID)
}

func TestCachedDebugStoreServesFromCacheWithinTTL(t *testing.T) {
	backing := &countingDebugStore{fakeDebugStore: newFakeDebugStore()}
	backing.EnableGlobalDebug("maintenance")

	cached := NewCachedDebugStore(backing, time.Minute)

	for i := 0; i < 5; i++ {
		enabled, reason, err := cached.GlobalDebug()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !enabled || reason != "maintenance" {
			t.Fatalf("unexpected result: enabled=%v reason=%q", enabled, reason)
		}
	}

	if backing.globalCalls != 1 {
		t.Fatalf("expected exactly one backing call, got %d", backing.globalCalls)
	}
}

func TestCachedDebugStoreInvalidatesOnMutation(t *testing.T) {
	backing := &countingDebugStore{fakeDebugStore: newFakeDebugStore()}
	cached := NewCachedDebugStore(backing, time.Minute)

	routerID := uuid.New()

	enabled, _, _ := cached.RouterInDebug(routerID)
	if enabled {
		t.Fatalf("expected router not to be in debug initially")
	}

	if err := cached.EnableRouterDebug(routerID, "hot router"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enabled, reason, _ := cached.RouterInDebug(routerID)
	if !enabled || reason != "hot router" {
		t.Fatalf("expected cache to reflect the mutation immediately, got enabled=%v reason=%q", enabled, reason)
	}
	if backing.routerCalls != 2 {
		t.Fatalf("expected the second read to miss the invalidated cache entry, got %d backing calls", backing.routerCalls)
	}
}

func TestCachedDebugStoreExpiresAfterTTL(t *testing.T) {
	backing := &countingDebugStore{fakeDebugStore: newFakeDebugStore()}
	cached := NewCachedDebugStore(backing, time.Millisecond)

	cached.GlobalDebug()
	time.Sleep(5 * time.Millisecond)
	cached.GlobalDebug()

	if backing.globalCalls != 2 {
		t.Fatalf("expected cache entry to expire and re-query backing store, got %d calls", backing.globalCalls)
	}
}
