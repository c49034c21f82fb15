package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskScheduler is the shared ready queue behind a thread pool.
// Workers pull from it with GetWork in FIFO order.
type TaskScheduler struct {
	queue       TaskQueue
	signal      chan struct{}
	workerCount int

	metricQueued int32 // Waiting in ReadyQueue
	metricActive int32 // Executing in Worker

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle
	state         atomic.Int32 // schedulerOpen, schedulerDraining or schedulerClosed
	inFlight      atomic.Int32 // accepted tasks not yet finished (queued + running)
	drainRejected atomic.Int32
}

const (
	schedulerOpen int32 = iota
	schedulerDraining
	schedulerClosed
)

func NewTaskScheduler(workerCount int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(workerCount, DefaultTaskSchedulerConfig())
}

func NewTaskSchedulerWithConfig(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	if workerCount < 1 {
		workerCount = 1
	}
	config = config.withDefaults()

	return &TaskScheduler{
		queue:               NewFIFOTaskQueue(),
		signal:              make(chan struct{}, workerCount*2),
		workerCount:         workerCount,
		panicHandler:        config.PanicHandler,
		metrics:             config.Metrics,
		rejectedTaskHandler: config.RejectedTaskHandler,
	}
}

// PostInternal queues task for the next free worker.
//
// While draining, a task is accepted only if earlier work is still queued or
// running, so a runner re-posting its loop, or a flow posting its next step,
// keeps going until everything accepted has finished.
func (s *TaskScheduler) PostInternal(task Task) {
	if !s.admit() {
		s.rejectedTaskHandler.HandleRejectedTask("TaskScheduler", "shutting down")
		s.metrics.RecordTaskRejected("TaskScheduler", "shutting down")
		return
	}

	s.queue.Push(task)
	queued := atomic.AddInt32(&s.metricQueued, 1)
	s.metrics.RecordQueueDepth("TaskScheduler", int(queued))

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
		// This is not an error, just a optimization hint
	}
}

func (s *TaskScheduler) admit() bool {
	switch s.state.Load() {
	case schedulerOpen:
		s.inFlight.Add(1)
		return true
	case schedulerDraining:
		// Once inFlight reaches zero while draining it never rises again.
		for {
			n := s.inFlight.Load()
			if n == 0 {
				s.drainRejected.Add(1)
				return false
			}
			if s.inFlight.CompareAndSwap(n, n+1) {
				return true
			}
		}
	default:
		return false
	}
}

// GetWork (Called by Worker)
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		if task, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return task, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

func (s *TaskScheduler) Shutdown() {
	s.state.Store(schedulerClosed)

	// Release all task references (including runLoop bound methods)
	s.queue.Clear()
	atomic.StoreInt32(&s.metricQueued, 0)
}

// ShutdownGraceful stops accepting outside work and waits until every
// accepted task, and every task those post while running, has finished.
// It returns an error on timeout (the queue is then cleared) or when work
// was turned away after the pool went idle.
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	if !s.state.CompareAndSwap(schedulerOpen, schedulerDraining) && s.state.Load() == schedulerClosed {
		return nil
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for s.inFlight.Load() > 0 {
		select {
		case <-deadline:
			s.Shutdown()
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
		}
	}

	s.state.Store(schedulerClosed)
	if n := s.drainRejected.Load(); n > 0 {
		return fmt.Errorf("shutdown graceful: %d tasks rejected while draining", n)
	}
	return nil
}

func (s *TaskScheduler) IsShuttingDown() bool { return s.state.Load() != schedulerOpen }

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }

func (s *TaskScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
	s.inFlight.Add(-1)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
