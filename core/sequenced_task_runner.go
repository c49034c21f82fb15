package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrRunnerClosed is returned by WaitIdle once the runner has been shut down.
var ErrRunnerClosed = errors.New("runner is closed")

// SequencedTaskRunner runs posted tasks one at a time, in post order, on the
// workers of a ThreadPool. Consecutive tasks may run on different workers but
// never overlap, so state owned by the sequence needs no locks.
type SequencedTaskRunner struct {
	name          string
	threadPool    ThreadPool
	queue         TaskQueue
	mu            sync.Mutex
	isRunning     bool
	activeRunners int32       // atomic guard for concurrency assertion
	closed        atomic.Bool // indicates if the runner is closed
	rejected      atomic.Int64
}

func NewSequencedTaskRunner(threadPool ThreadPool) *SequencedTaskRunner {
	return NewNamedSequencedTaskRunner("sequenced", threadPool)
}

func NewNamedSequencedTaskRunner(name string, threadPool ThreadPool) *SequencedTaskRunner {
	return &SequencedTaskRunner{
		name:       name,
		threadPool: threadPool,
		queue:      NewFIFOTaskQueue(),
	}
}

// Name returns the name used in logs and metric labels.
func (r *SequencedTaskRunner) Name() string {
	return r.name
}

// PostTask appends task to the sequence and makes sure a runLoop is scheduled.
// It never executes task on the calling goroutine.
func (r *SequencedTaskRunner) PostTask(task Task) {
	if r.closed.Load() {
		r.rejected.Add(1)
		r.threadPool.GetMetrics().RecordTaskRejected(r.name, "closed")
		return
	}
	r.queue.Push(task)
	r.threadPool.GetMetrics().RecordQueueDepth(r.name, r.queue.Len())
	r.scheduleRunLoop()
}

// scheduleRunLoop starts runLoop (if not already running)
func (r *SequencedTaskRunner) scheduleRunLoop() {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = true
	r.mu.Unlock()
	r.threadPool.PostInternal(r.runLoop)
}

// runLoop executes exactly one task and then yields back to the pool,
// re-posting itself while the queue is non-empty.
func (r *SequencedTaskRunner) runLoop(ctx context.Context) {
	if r.runOnce(ctx) {
		r.threadPool.PostInternal(r.runLoop)
	}
}

// runOnce reports whether another runLoop must be posted.
func (r *SequencedTaskRunner) runOnce(ctx context.Context) bool {
	// Assertion: Ensure strictly one goroutine at a time
	if n := atomic.AddInt32(&r.activeRunners, 1); n > 1 {
		panic(fmt.Sprintf("SequencedTaskRunner: concurrent runLoop detected (count=%d)", n))
	}
	defer atomic.AddInt32(&r.activeRunners, -1)

	if task, ok := r.queue.Pop(); ok && !r.closed.Load() {
		runCtx := context.WithValue(ctx, taskRunnerKey, TaskRunner(r))
		runTaskSafely(runCtx, r.name, -1, task, r.threadPool.GetPanicHandler(), r.threadPool.GetMetrics())
	}

	// A poster that saw isRunning == true relies on us to pick its task up,
	// so the emptiness check and the flag update share the lock.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() || r.queue.IsEmpty() {
		r.isRunning = false
		return false
	}
	return true
}

// WaitIdle blocks until every task posted before the call has run.
func (r *SequencedTaskRunner) WaitIdle(ctx context.Context) error {
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
	}
}

// Shutdown marks the runner closed and drops every pending task.
// A task that is already executing is not interrupted.
func (r *SequencedTaskRunner) Shutdown() {
	r.closed.Store(true)
	r.queue.Clear()
}

// IsClosed returns true if the runner has been shut down.
func (r *SequencedTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stats returns a point-in-time snapshot of the runner.
func (r *SequencedTaskRunner) Stats() RunnerStats {
	return RunnerStats{
		Name:     r.name,
		Type:     "sequenced",
		Pending:  r.queue.Len(),
		Running:  int(atomic.LoadInt32(&r.activeRunners)),
		Rejected: r.rejected.Load(),
		Closed:   r.closed.Load(),
	}
}
