package core

import (
	"context"
	"sync"
	"time"
)

// testThreadPool is a minimal ThreadPool backed by a TaskScheduler and two workers.
type testThreadPool struct {
	scheduler *TaskScheduler
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func newTestThreadPool() *testThreadPool {
	return newTestThreadPoolWithConfig(&TaskSchedulerConfig{
		PanicHandler: &DefaultPanicHandler{Logger: NewNoOpLogger()},
	})
}

func newTestThreadPoolWithConfig(config *TaskSchedulerConfig) *testThreadPool {
	return &testThreadPool{
		scheduler: NewTaskSchedulerWithConfig(2, config),
	}
}

func (tp *testThreadPool) start() {
	tp.ctx, tp.cancel = context.WithCancel(context.Background())
	for i := 0; i < 2; i++ {
		tp.wg.Add(1)
		go tp.worker()
	}
}

func (tp *testThreadPool) worker() {
	defer tp.wg.Done()
	for {
		task, ok := tp.scheduler.GetWork(tp.ctx.Done())
		if !ok {
			return
		}
		tp.scheduler.OnTaskStart()
		func() {
			defer tp.scheduler.OnTaskEnd()
			task(tp.ctx)
		}()
	}
}

func (tp *testThreadPool) stop() {
	tp.scheduler.Shutdown()
	if tp.cancel != nil {
		tp.cancel()
	}
	tp.wg.Wait()
}

func (tp *testThreadPool) PostInternal(task Task)        { tp.scheduler.PostInternal(task) }
func (tp *testThreadPool) Start(ctx context.Context)     {}
func (tp *testThreadPool) Stop()                         {}
func (tp *testThreadPool) Join()                         {}
func (tp *testThreadPool) ID() string                    { return "test" }
func (tp *testThreadPool) IsRunning() bool               { return true }
func (tp *testThreadPool) WorkerCount() int              { return 2 }
func (tp *testThreadPool) QueuedTaskCount() int          { return tp.scheduler.QueuedTaskCount() }
func (tp *testThreadPool) ActiveTaskCount() int          { return tp.scheduler.ActiveTaskCount() }
func (tp *testThreadPool) GetPanicHandler() PanicHandler { return tp.scheduler.GetPanicHandler() }
func (tp *testThreadPool) GetMetrics() Metrics           { return tp.scheduler.GetMetrics() }

// manualThreadPool records posted tasks without running them, so a test can
// drive runLoop step by step.
type manualThreadPool struct {
	mu     sync.Mutex
	posted []Task
}

func (m *manualThreadPool) PostInternal(task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, task)
}

func (m *manualThreadPool) take() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.posted
	m.posted = nil
	return out
}

func (m *manualThreadPool) Start(ctx context.Context)     {}
func (m *manualThreadPool) Stop()                         {}
func (m *manualThreadPool) Join()                         {}
func (m *manualThreadPool) ID() string                    { return "manual" }
func (m *manualThreadPool) IsRunning() bool               { return true }
func (m *manualThreadPool) WorkerCount() int              { return 1 }
func (m *manualThreadPool) QueuedTaskCount() int          { return 0 }
func (m *manualThreadPool) ActiveTaskCount() int          { return 0 }
func (m *manualThreadPool) GetPanicHandler() PanicHandler { return &DefaultPanicHandler{Logger: NewNoOpLogger()} }
func (m *manualThreadPool) GetMetrics() Metrics           { return &NilMetrics{} }

// recordingMetrics counts the calls the runners make.
type recordingMetrics struct {
	NilMetrics
	mu       sync.Mutex
	panics   int
	rejected []string
	tasks    int
}

func (m *recordingMetrics) RecordTaskPanic(runnerName string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordTaskRejected(runnerName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, reason)
}

func (m *recordingMetrics) RecordTaskDuration(runnerName string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks++
}

func (m *recordingMetrics) snapshot() (panics int, rejected []string, tasks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panics, append([]string(nil), m.rejected...), m.tasks
}

// recordingPanicHandler captures recovered panic values.
type recordingPanicHandler struct {
	mu     sync.Mutex
	values []any
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, panicInfo)
}

func (h *recordingPanicHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}
