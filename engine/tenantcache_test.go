package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nimbusnet/rugengine/config"
)

func newTestWorkerContext(t *testing.T, lookups *int, routerID uuid.UUID) (*WorkerContext, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*lookups++
		json.NewEncoder(w).Encode(defaultRouterResponse{RouterID: routerID.String()})
	}))

	cfg := &config.Config{
		Compute: config.APIConfig{BaseURL: srv.URL, MaxRequestsPerSecond: 1000, Burst: 1000},
		Network: config.APIConfig{BaseURL: srv.URL, MaxRequestsPerSecond: 1000, Burst: 1000},
	}
	return NewWorkerContext(cfg), srv.Close
}

func TestTenantRouterCacheMissThenHit(t *testing.T) {
	routerID := uuid.New()
	var lookups int
	wctx, cleanup := newTestWorkerContext(t, &lookups, routerID)
	defer cleanup()

	cache := NewTenantRouterCache()
	tenantID := uuid.New()

	got, ok, err := cache.GetByTenant(context.Background(), tenantID, wctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || got != routerID {
		t.Fatalf("unexpected lookup result: ok=%v got=%v", ok, got)
	}

	got2, ok2, err := cache.GetByTenant(context.Background(), tenantID, wctx)
	if err != nil {
		t.Fatalf("unexpected error on cached lookup: %v", err)
	}
	if !ok2 || got2 != routerID {
		t.Fatalf("unexpected cached result: ok=%v got=%v", ok2, got2)
	}

	if lookups != 1 {
		t.Fatalf("expected exactly one network lookup, got %d", lookups)
	}
}

func TestTenantRouterCacheMissWithNoDefaultRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(defaultRouterResponse{})
	}))
	defer srv.Close()

	cfg := &config.Config{
		Compute: config.APIConfig{BaseURL: srv.URL, MaxRequestsPerSecond: 1000, Burst: 1000},
		Network: config.APIConfig{BaseURL: srv.URL, MaxRequestsPerSecond: 1000, Burst: 1000},
	}
	wctx := NewWorkerContext(cfg)

	cache := NewTenantRouterCache()
	got, ok, err := cache.GetByTenant(context.Background(), uuid.New(), wctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || got != uuid.Nil {
		t.Fatalf("expected no resolvable router, got ok=%v got=%v", ok, got)
	}
}
