package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusnet/rugengine/config"
	"github.com/nimbusnet/rugengine/errors"
	"github.com/nimbusnet/rugengine/logger"
)

// defaultQueueCapacity bounds the work queue so a stuck worker pool fails
// loudly (enqueue returning false, logged at warn) instead of growing memory
// without limit.
const defaultQueueCapacity = 4096

// workItem is one unit handed to a worker goroutine: a state machine that
// wants an Update call, identified so the worker can release its guard and
// report status.
type workItem struct {
	stop     bool
	tenantID uuid.UUID
	routerID uuid.UUID
	sm       RouterStateMachine
}

// Engine is the worker-pool scheduler: it owns every tenant's router
// managers, the per-router guards that prevent two goroutines from calling
// Update on the same state machine concurrently, and the pool of worker
// goroutines that drain the work queue.
//
// deliverMu is the single lock that makes "guard state" and "queue contents"
// change together atomically. It is held only for the brief bookkeeping
// around SendMessage/enqueue/release — never across an Update call, which is
// the one step expected to block on external I/O.
type Engine struct {
	deliverMu sync.Mutex
	tenants   map[uuid.UUID]*TenantRouterManager
	locks     *routerLocks
	factory   StateMachineFactory

	queueWarningThreshold int
	rebootErrorThreshold  int

	debugStore  DebugStore
	tenantCache *TenantRouterCache
	cacheWctx   *WorkerContext
	newWorkerContext func() *WorkerContext

	numWorkers     int
	dequeueTimeout time.Duration
	joinTimeout    time.Duration

	queueMu   sync.RWMutex
	workQueue chan workItem

	status *statusTable

	wg      sync.WaitGroup
	running bool
}

// NewEngine constructs an Engine from configuration. factory builds the
// state machine for a (tenant, router) pair the first time it is referenced.
func NewEngine(cfg *config.Config, factory StateMachineFactory, debugStore DebugStore) *Engine {
	dequeueTimeout := time.Duration(cfg.WorkerDequeueTimeout) * time.Second
	if dequeueTimeout <= 0 {
		dequeueTimeout = 10 * time.Second
	}
	joinTimeout := time.Duration(cfg.ShutdownJoinTimeout) * time.Second
	if joinTimeout <= 0 {
		joinTimeout = 5 * time.Second
	}
	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 4
	}

	return &Engine{
		tenants:               make(map[uuid.UUID]*TenantRouterManager),
		locks:                 newRouterLocks(),
		factory:               factory,
		queueWarningThreshold: cfg.QueueWarningThreshold,
		rebootErrorThreshold:  cfg.RebootErrorThreshold,
		debugStore:            debugStore,
		tenantCache:           NewTenantRouterCache(),
		cacheWctx:             NewWorkerContext(cfg),
		newWorkerContext:      func() *WorkerContext { return NewWorkerContext(cfg) },
		numWorkers:            numWorkers,
		dequeueTimeout:        dequeueTimeout,
		joinTimeout:           joinTimeout,
		workQueue:             make(chan workItem, defaultQueueCapacity),
		status:                newStatusTable(),
	}
}

// Start launches the worker pool. Calling Start twice is a programmer error.
func (e *Engine) Start() {
	e.deliverMu.Lock()
	e.running = true
	e.deliverMu.Unlock()

	for i := 0; i < e.numWorkers; i++ {
		e.status.clear(i)
		e.wg.Add(1)
		go e.workerLoop(i)
	}
}

// managerFor returns the TenantRouterManager for tenantID, creating one on
// first reference. Caller must hold deliverMu.
func (e *Engine) managerFor(tenantID uuid.UUID) *TenantRouterManager {
	m, ok := e.tenants[tenantID]
	if !ok {
		m = NewTenantRouterManager(tenantID, e.factory, e.queueWarningThreshold, e.rebootErrorThreshold)
		e.tenants[tenantID] = m
	}
	return m
}

// deliver hands event to the state machine it targets (event.RouterID must
// already be resolved) and, if the machine now wants an Update, enqueues it
// — unless it is already queued or running, in which case SendMessage's
// side effect (appending to the machine's private inbox) is enough: the
// worker currently holding the guard will observe HasMoreWork() itself.
func (e *Engine) deliver(event Event) {
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()

	mgr := e.managerFor(event.TenantID)
	refs := mgr.GetStateMachines(event)
	for _, ref := range refs {
		wantsUpdate := ref.sm.SendMessage(event)
		if !wantsUpdate {
			continue
		}
		e.tryEnqueueLocked(event.TenantID, ref.routerID, ref.sm)
	}
}

// tryEnqueueLocked acquires the router's guard and pushes a work item if the
// guard was free. Caller must hold deliverMu.
func (e *Engine) tryEnqueueLocked(tenantID, routerID uuid.UUID, sm RouterStateMachine) {
	guard := e.locks.guardFor(routerID)
	if !guard.tryAcquire() {
		return
	}
	if !e.enqueue(workItem{tenantID: tenantID, routerID: routerID, sm: sm}) {
		// Queue is saturated: release the guard so a later event can retry.
		guard.release()
		logger.Warnw("work queue saturated, dropping schedule attempt",
			logger.FieldTenantID, tenantID.String(),
			logger.FieldRouterID, routerID.String())
	}
}

// enqueue pushes item onto the current work queue without blocking. It
// returns false if the queue is full.
func (e *Engine) enqueue(item workItem) bool {
	e.queueMu.RLock()
	q := e.workQueue
	e.queueMu.RUnlock()

	select {
	case q <- item:
		if e.queueWarningThreshold > 0 && len(q) >= e.queueWarningThreshold {
			logger.Warnw("work queue length exceeds warning threshold",
				"length", len(q), "threshold", e.queueWarningThreshold)
		}
		return true
	default:
		return false
	}
}

// workerLoop is the body of one worker goroutine. It dequeues with a timeout
// so that a queue-pointer swap made by Shutdown is eventually observed even
// by a worker that was already blocked waiting for work.
func (e *Engine) workerLoop(id int) {
	defer e.wg.Done()
	wctx := e.newWorkerContext()

	for {
		e.queueMu.RLock()
		q := e.workQueue
		e.queueMu.RUnlock()

		select {
		case item, ok := <-q:
			if !ok || item.stop {
				e.status.clear(id)
				return
			}
			e.process(id, item, wctx)
		case <-time.After(e.dequeueTimeout):
			continue
		}
	}
}

// process runs one Update call for item and then, under deliverMu, releases
// the router's guard and re-enqueues if the state machine still has work.
// The re-enqueue is skipped entirely while the router is in debug mode: the
// skipped Update never consumed the pending message, so HasMoreWork would
// otherwise keep reporting true and spin the router through the queue
// instead of leaving it parked until debug mode clears.
func (e *Engine) process(id int, item workItem, wctx *WorkerContext) {
	skip, reason, err := e.isRouterInDebug(item.routerID)
	if err != nil {
		logger.Warnw("debug store lookup failed, proceeding as if not in debug",
			logger.FieldRouterID, item.routerID.String(), "error", err.Error())
	}

	e.status.set(id, item.tenantID, item.routerID)

	if !skip {
		if err := e.safeUpdate(item, wctx); err != nil {
			logger.Errorw("router update failed",
				logger.FieldTenantID, item.tenantID.String(),
				logger.FieldRouterID, item.routerID.String(),
				"error", err.Error())
		}
	} else {
		logger.Debugw("router in debug mode, skipping update",
			logger.FieldRouterID, item.routerID.String(), "reason", reason)
	}

	e.deliverMu.Lock()
	guard := e.locks.guardFor(item.routerID)
	guard.release()
	if !skip && item.sm.HasMoreWork() {
		e.tryEnqueueLocked(item.tenantID, item.routerID, item.sm)
	}
	e.deliverMu.Unlock()

	e.status.clear(id)
}

// safeUpdate runs item.sm.Update and converts a panic into an error so one
// misbehaving state machine cannot take down the worker pool.
func (e *Engine) safeUpdate(item workItem, wctx *WorkerContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("router update panicked: %v", r)
		}
	}()
	return item.sm.Update(wctx)
}

func (e *Engine) isRouterInDebug(routerID uuid.UUID) (bool, string, error) {
	if e.debugStore == nil {
		return false, "", nil
	}
	if global, reason, err := e.debugStore.GlobalDebug(); err != nil {
		return false, "", err
	} else if global {
		return true, reason, nil
	}
	return e.debugStore.RouterInDebug(routerID)
}

// Shutdown stops accepting new queue pointers, pushes one stop sentinel per
// worker onto a freshly installed queue, and joins every worker goroutine up
// to joinTimeout. Work still sitting in the old queue is discarded: this
// engine does not drain in-flight backlog on shutdown, matching the
// documented at-least-once rather than exactly-once delivery guarantee.
func (e *Engine) Shutdown() error {
	e.deliverMu.Lock()
	if !e.running {
		e.deliverMu.Unlock()
		return nil
	}
	e.running = false
	e.deliverMu.Unlock()

	stopQueue := make(chan workItem, e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		stopQueue <- workItem{stop: true}
	}

	e.queueMu.Lock()
	e.workQueue = stopQueue
	e.queueMu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(e.joinTimeout):
		return errors.Newf("worker pool did not shut down within %s", e.joinTimeout)
	}
}

// Snapshot returns the current per-worker status, used to answer
// WORKERS_DEBUG.
func (e *Engine) Snapshot() []WorkerStatus {
	return e.status.snapshot()
}
