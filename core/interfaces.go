package core

import (
	"context"
	"time"
)

// =============================================================================
// ThreadPool: Execution engine behind SequencedTaskRunner
// =============================================================================

// ThreadPool pulls posted tasks onto worker goroutines.
// The pool itself gives no ordering guarantee across workers; ordering is the
// job of the runner that posts into it.
type ThreadPool interface {
	PostInternal(task Task)

	Start(ctx context.Context)
	Stop()
	Join()

	ID() string
	IsRunning() bool
	WorkerCount() int
	QueuedTaskCount() int
	ActiveTaskCount() int

	GetPanicHandler() PanicHandler
	GetMetrics() Metrics
}

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (may contain task runner info)
	// - runnerName: The name of the task runner where the panic occurred
	// - workerID: The ID of the worker (for thread pool workers, -1 for runners)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics through a Logger at error level.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	fields := []Field{F("runner", runnerName), F("panic", panicInfo), F("stack", string(stackTrace))}
	if workerID >= 0 {
		fields = append(fields, F("worker", workerID))
	}
	logger.Error("task panicked", fields...)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Flow outcomes reported to RecordFlowFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Metrics defines the interface for collecting flow and task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordFlowStarted records that a flow named flowName was started.
	RecordFlowStarted(flowName string)

	// RecordFlowFinished records the end of a flow, after its final callback returned.
	// outcome is OutcomeCompleted or OutcomeFailed.
	RecordFlowFinished(flowName string, outcome string, duration time.Duration)

	// RecordIgnoredCall records a continuation invocation that had no effect,
	// e.g. a second call from the same task or a call after the flow ended.
	RecordIgnoredCall(flowName string, reason string)

	// RecordTaskDuration records how long a task took to execute on a runner.
	RecordTaskDuration(runnerName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(runnerName string, panicInfo any)

	// RecordQueueDepth records the current queue depth of a runner.
	RecordQueueDepth(runnerName string, depth int)

	// RecordTaskRejected records that a task was rejected (e.g., during shutdown).
	RecordTaskRejected(runnerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordFlowStarted(flowName string)                                 {}
func (m *NilMetrics) RecordFlowFinished(flowName string, outcome string, d time.Duration) {}
func (m *NilMetrics) RecordIgnoredCall(flowName string, reason string)                  {}
func (m *NilMetrics) RecordTaskDuration(runnerName string, duration time.Duration)      {}
func (m *NilMetrics) RecordTaskPanic(runnerName string, panicInfo any)                  {}
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int)                     {}
func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string)               {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected because the scheduler
// or runner it was posted to is shutting down.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(runnerName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(runnerName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("task rejected", F("runner", runnerName), F("reason", reason))
}

// =============================================================================
// TaskSchedulerConfig: Configuration for TaskScheduler
// =============================================================================

// TaskSchedulerConfig holds configuration options for TaskScheduler.
// All handlers are optional; if not provided, default implementations will be used.
type TaskSchedulerConfig struct {
	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultTaskSchedulerConfig returns a config with default handlers.
func DefaultTaskSchedulerConfig() *TaskSchedulerConfig {
	return &TaskSchedulerConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}

// withDefaults fills every nil handler with its default.
func (c *TaskSchedulerConfig) withDefaults() *TaskSchedulerConfig {
	out := DefaultTaskSchedulerConfig()
	if c == nil {
		return out
	}
	if c.PanicHandler != nil {
		out.PanicHandler = c.PanicHandler
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.RejectedTaskHandler != nil {
		out.RejectedTaskHandler = c.RejectedTaskHandler
	}
	return out
}
