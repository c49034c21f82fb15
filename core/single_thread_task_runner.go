package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// SingleThreadTaskRunner binds a dedicated goroutine to execute tasks sequentially.
// It is the closest Go analogue of an event loop: every posted task runs on the
// same goroutine, in post order, on a later turn of the loop.
//
// Key differences from SequencedTaskRunner:
// - SequencedTaskRunner: Tasks execute sequentially but may run on different worker goroutines
// - SingleThreadTaskRunner: Tasks execute sequentially AND always on the same dedicated goroutine
type SingleThreadTaskRunner struct {
	// Unbounded so a task may post to its own runner without blocking the loop
	queue  *FIFOTaskQueue
	signal chan struct{}

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownOnce sync.Once

	running  atomic.Int32
	rejected atomic.Int64

	name         string
	panicHandler PanicHandler
	metrics      Metrics
}

// NewSingleThreadTaskRunner creates and starts a new SingleThreadTaskRunner.
// It immediately spawns a dedicated goroutine for task execution.
func NewSingleThreadTaskRunner() *SingleThreadTaskRunner {
	return NewSingleThreadTaskRunnerWithConfig("single-thread", DefaultTaskSchedulerConfig())
}

// NewSingleThreadTaskRunnerWithConfig creates a named runner using the panic
// handler and metrics from config.
func NewSingleThreadTaskRunnerWithConfig(name string, config *TaskSchedulerConfig) *SingleThreadTaskRunner {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	r := &SingleThreadTaskRunner{
		queue:        NewFIFOTaskQueue(),
		signal:       make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		name:         name,
		panicHandler: config.PanicHandler,
		metrics:      config.Metrics,
	}

	go r.runLoop()

	return r
}

// Name returns the name of the task runner
func (r *SingleThreadTaskRunner) Name() string {
	return r.name
}

// PostTask submits a task for execution on the loop goroutine.
func (r *SingleThreadTaskRunner) PostTask(task Task) {
	if r.closed.Load() {
		r.rejected.Add(1)
		r.metrics.RecordTaskRejected(r.name, "closed")
		return
	}

	r.queue.Push(task)
	r.metrics.RecordQueueDepth(r.name, r.queue.Len())

	select {
	case r.signal <- struct{}{}:
	default:
		// loop already has a pending wake-up
	}
}

// Shutdown marks the runner as closed and stops the loop after the task that
// is currently executing. Pending tasks are dropped. Safe to call from a task.
func (r *SingleThreadTaskRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.closed.Store(true)
		r.cancel()
	})
}

// IsClosed returns true if the runner has been stopped
func (r *SingleThreadTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stop shuts the runner down and waits for the loop goroutine to exit.
// Must not be called from a task running on this runner.
func (r *SingleThreadTaskRunner) Stop() {
	r.once.Do(func() {
		r.Shutdown()
		<-r.stopped
		r.queue.Clear()
	})
}

// runLoop is the core of this runner, it occupies a dedicated goroutine
func (r *SingleThreadTaskRunner) runLoop() {
	defer close(r.stopped)

	runCtx := context.WithValue(r.ctx, taskRunnerKey, TaskRunner(r))

	for {
		task, ok := r.queue.Pop()
		if !ok {
			select {
			case <-r.signal:
				continue
			case <-r.ctx.Done():
				return
			}
		}
		if r.ctx.Err() != nil {
			return
		}

		r.running.Store(1)
		runTaskSafely(runCtx, r.name, -1, task, r.panicHandler, r.metrics)
		r.running.Store(0)
	}
}

// WaitIdle blocks until all currently queued tasks have completed execution.
// Note: Tasks posted after WaitIdle is called are not waited for.
func (r *SingleThreadTaskRunner) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return ErrRunnerClosed
	}

	done := make(chan struct{})
	r.PostTask(func(context.Context) { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrRunnerClosed
	}
}

// Stats returns a point-in-time snapshot of the runner.
func (r *SingleThreadTaskRunner) Stats() RunnerStats {
	return RunnerStats{
		Name:     r.name,
		Type:     "single_thread",
		Pending:  r.queue.Len(),
		Running:  int(r.running.Load()),
		Rejected: r.rejected.Load(),
		Closed:   r.closed.Load(),
	}
}
