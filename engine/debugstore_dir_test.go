package engine

import (
	"testing"

	"github.com/google/uuid"
)

func TestDirectoryDebugStoreGlobalRoundTrip(t *testing.T) {
	store, err := NewDirectoryDebugStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enabled, _, err := store.GlobalDebug()
	if err != nil || enabled {
		t.Fatalf("expected global debug disabled initially, got enabled=%v err=%v", enabled, err)
	}

	if err := store.EnableGlobalDebug("operator override"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	enabled, reason, err := store.GlobalDebug()
	if err != nil || !enabled || reason != "operator override" {
		t.Fatalf("unexpected state: enabled=%v reason=%q err=%v", enabled, reason, err)
	}

	if err := store.DisableGlobalDebug(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	enabled, _, _ = store.GlobalDebug()
	if enabled {
		t.Fatalf("expected global debug disabled after disable")
	}
}

func TestDirectoryDebugStoreRouterEntriesListed(t *testing.T) {
	store, err := NewDirectoryDebugStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r1, r2 := uuid.New(), uuid.New()
	store.EnableRouterDebug(r1, "a")
	store.EnableRouterDebug(r2, "b")

	entries, err := store.RoutersInDebug()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	store.DisableRouterDebug(r1)
	entries, err = store.RoutersInDebug()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != r2 {
		t.Fatalf("unexpected remaining entries: %+v", entries)
	}
}

func TestDirectoryDebugStoreDisableMissingIsNoop(t *testing.T) {
	store, err := NewDirectoryDebugStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.DisableTenantDebug(uuid.New()); err != nil {
		t.Fatalf("expected disabling an absent tenant flag to be a no-op, got %v", err)
	}
}
