package commands

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusnet/rugengine/config"
	"github.com/nimbusnet/rugengine/engine"
)

func TestConfigReloaderApplyUpdatesCacheTTL(t *testing.T) {
	store := &stubDebugStore{}
	cached := engine.NewCachedDebugStore(store, 10*time.Millisecond)
	r := &configReloader{cached: cached, active: &config.Config{NumWorkers: 4, DebugStore: config.DebugStore{Backend: "sqlite", CacheTTLMS: 10}}}

	_, _, err := cached.GlobalDebug()
	require.NoError(t, err)
	assert.Equal(t, 1, store.globalCalls)

	err = r.apply(&config.Config{NumWorkers: 4, DebugStore: config.DebugStore{Backend: "sqlite", CacheTTLMS: 0}})
	require.NoError(t, err)

	// A zero TTL only applies to entries cached from now on; the previous
	// lookup's cached entry is untouched until it naturally expires.
	_, _, err = cached.GlobalDebug()
	require.NoError(t, err)
	assert.Equal(t, 1, store.globalCalls)

	time.Sleep(15 * time.Millisecond)
	_, _, err = cached.GlobalDebug()
	require.NoError(t, err)
	assert.Equal(t, 2, store.globalCalls)

	// With TTL now zero, every subsequent call passes through immediately.
	_, _, err = cached.GlobalDebug()
	require.NoError(t, err)
	assert.Equal(t, 3, store.globalCalls)
}

func TestConfigReloaderApplyWarnsOnRestartOnlyChanges(t *testing.T) {
	store := &stubDebugStore{}
	cached := engine.NewCachedDebugStore(store, time.Second)
	r := &configReloader{cached: cached, active: &config.Config{NumWorkers: 4, DebugStore: config.DebugStore{Backend: "sqlite"}}}

	err := r.apply(&config.Config{NumWorkers: 8, DebugStore: config.DebugStore{Backend: "directory"}})
	require.NoError(t, err)

	assert.Equal(t, 8, r.active.NumWorkers)
	assert.Equal(t, "directory", r.active.DebugStore.Backend)
}

// stubDebugStore is a minimal engine.DebugStore that only tracks
// GlobalDebug call counts, the only path these tests exercise.
type stubDebugStore struct {
	globalCalls int
}

func (s *stubDebugStore) GlobalDebug() (bool, string, error) {
	s.globalCalls++
	return false, "", nil
}
func (s *stubDebugStore) TenantInDebug(uuid.UUID) (bool, string, error)  { return false, "", nil }
func (s *stubDebugStore) RouterInDebug(uuid.UUID) (bool, string, error)  { return false, "", nil }
func (s *stubDebugStore) TenantsInDebug() ([]engine.DebugEntry, error)   { return nil, nil }
func (s *stubDebugStore) RoutersInDebug() ([]engine.DebugEntry, error)   { return nil, nil }
func (s *stubDebugStore) EnableGlobalDebug(string) error                { return nil }
func (s *stubDebugStore) DisableGlobalDebug() error                     { return nil }
func (s *stubDebugStore) EnableTenantDebug(uuid.UUID, string) error     { return nil }
func (s *stubDebugStore) DisableTenantDebug(uuid.UUID) error            { return nil }
func (s *stubDebugStore) EnableRouterDebug(uuid.UUID, string) error     { return nil }
func (s *stubDebugStore) DisableRouterDebug(uuid.UUID) error            { return nil }
