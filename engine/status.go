package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerStatus snapshots what one worker goroutine is doing at the moment of
// the snapshot, used to answer the WORKERS_DEBUG introspection command.
type WorkerStatus struct {
	WorkerID  int
	Idle      bool
	TenantID  uuid.UUID
	RouterID  uuid.UUID
	Since     time.Time
}

// statusTable tracks per-worker status under a single lock. Writes happen
// once per work item (set on dequeue, cleared on completion), so contention
// is negligible next to the Update call itself.
type statusTable struct {
	mu    sync.Mutex
	byID  map[int]WorkerStatus
}

func newStatusTable() *statusTable {
	return &statusTable{byID: make(map[int]WorkerStatus)}
}

func (t *statusTable) set(workerID int, tenantID, routerID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[workerID] = WorkerStatus{
		WorkerID: workerID,
		Idle:     false,
		TenantID: tenantID,
		RouterID: routerID,
		Since:    time.Now(),
	}
}

func (t *statusTable) clear(workerID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[workerID] = WorkerStatus{WorkerID: workerID, Idle: true, Since: time.Now()}
}

func (t *statusTable) snapshot() []WorkerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WorkerStatus, 0, len(t.byID))
	for _, s := range t.byID {
		out = append(out, s)
	}
	return out
}
