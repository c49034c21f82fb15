package tflow

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-tflow/core"
)

// GoroutineThreadPool manages a set of worker goroutines
// Responsible for pulling tasks from the scheduler and executing them
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ core.ThreadPool = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a new GoroutineThreadPool with default handlers
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, core.DefaultTaskSchedulerConfig())
}

// NewGoroutineThreadPoolWithConfig creates a pool whose scheduler uses config's handlers
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *core.TaskSchedulerConfig) *GoroutineThreadPool {
	scheduler := core.NewTaskSchedulerWithConfig(workers, config)
	return &GoroutineThreadPool{
		id:        id,
		workers:   scheduler.WorkerCount(),
		scheduler: scheduler,
	}
}

// NewGoroutineThreadPoolFromConfig creates a pool described by cfg.
// Panics and rejections are logged through cfg.Logger(); metrics may be nil.
func NewGoroutineThreadPoolFromConfig(cfg core.Config, metrics core.Metrics) (*GoroutineThreadPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewGoroutineThreadPoolWithConfig(cfg.PoolID, cfg.Workers, cfg.SchedulerConfig(metrics)), nil
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the thread pool, dropping queued tasks
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to release queued tasks,
	// even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the thread pool gracefully. Queued tasks run to completion,
// and so does the work they post while running: sequenced runners keep draining
// their queues and flows in progress keep advancing. Posts from outside arriving
// after the pool went idle are rejected.
// Returns error if timeout is exceeded before tasks complete, or if any post
// was rejected while draining.
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		tg.scheduler.Shutdown()
		return nil
	}
	tg.runningMu.Unlock()

	// Workers are cancelled on both paths; err only reports whether the queue drained
	err := tg.scheduler.ShutdownGraceful(timeout)

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return err
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()

	for {
		task, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			return
		}

		tg.scheduler.OnTaskStart()
		tg.runTask(ctx, id, task)
		tg.scheduler.OnTaskEnd()
	}
}

// runTask keeps a panicking task from killing its worker.
// Tasks posted by a SequencedTaskRunner recover their own panics first.
func (tg *GoroutineThreadPool) runTask(ctx context.Context, workerID int, task core.Task) {
	defer func() {
		if r := recover(); r != nil {
			tg.scheduler.GetMetrics().RecordTaskPanic(tg.id, r)
			tg.scheduler.GetPanicHandler().HandlePanic(ctx, tg.id, workerID, r, nil)
		}
	}()
	task(ctx)
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

func (tg *GoroutineThreadPool) PostInternal(task core.Task) {
	tg.scheduler.PostInternal(task)
}

func (tg *GoroutineThreadPool) GetPanicHandler() core.PanicHandler {
	return tg.scheduler.GetPanicHandler()
}

func (tg *GoroutineThreadPool) GetMetrics() core.Metrics {
	return tg.scheduler.GetMetrics()
}

// Stats returns a point-in-time snapshot of the pool.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      tg.id,
		Workers: tg.workers,
		Queued:  tg.QueuedTaskCount(),
		Active:  tg.ActiveTaskCount(),
		Running: tg.IsRunning(),
	}
}

// =============================================================================
// Global Thread Pool Helper (Singleton)
// =============================================================================

var (
	globalThreadPool *GoroutineThreadPool
	globalMu         sync.Mutex

	defaultLoop     *core.SingleThreadTaskRunner
	defaultLoopOnce sync.Once
)

// InitGlobalThreadPool initializes the global thread pool with specified number of workers.
// It starts the pool immediately.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = NewGoroutineThreadPool("global-pool", workers)
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool instance.
// It panics if InitGlobalThreadPool has not been called.
func GetGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		panic("GlobalThreadPool not initialized. Call InitGlobalThreadPool() first.")
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}

// CreateTaskRunner creates a new SequencedTaskRunner using the global thread pool.
func CreateTaskRunner() *core.SequencedTaskRunner {
	return core.NewSequencedTaskRunner(GetGlobalThreadPool())
}

// DefaultTaskRunner picks the runner a flow uses when none is given:
// a fresh SequencedTaskRunner on the global pool when one is initialized,
// otherwise the process-wide event loop, started on first use.
// Both run posted tasks in FIFO order on a later turn.
func DefaultTaskRunner() core.TaskRunner {
	return NamedDefaultTaskRunner(defaultFlowName)
}

// NamedDefaultTaskRunner is DefaultTaskRunner with the pool runner labelled
// name in logs and metrics. The shared event loop keeps its own name.
func NamedDefaultTaskRunner(name string) core.TaskRunner {
	globalMu.Lock()
	pool := globalThreadPool
	globalMu.Unlock()

	if pool != nil && pool.IsRunning() {
		return core.NewNamedSequencedTaskRunner(name, pool)
	}
	return eventLoop()
}

func eventLoop() *core.SingleThreadTaskRunner {
	defaultLoopOnce.Do(func() {
		defaultLoop = core.NewSingleThreadTaskRunnerWithConfig("event-loop", core.DefaultTaskSchedulerConfig())
	})
	return defaultLoop
}
