package core

import (
	"context"
	"runtime/debug"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================

// TaskRunner defers a task to a later turn of execution.
// Implementations must preserve FIFO order of posted tasks and must never run
// a task synchronously inside PostTask.
type TaskRunner interface {
	PostTask(task Task)
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

// GetCurrentTaskRunner returns the runner executing the current task, or nil
// when ctx was not produced by one of the runners in this package.
func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}

// runTaskSafely executes task, recording its duration and routing a panic to
// the panic handler instead of unwinding the calling goroutine.
func runTaskSafely(ctx context.Context, runnerName string, workerID int, task Task, panicHandler PanicHandler, metrics Metrics) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordTaskPanic(runnerName, rec)
			panicHandler.HandlePanic(ctx, runnerName, workerID, rec, debug.Stack())
		}
		metrics.RecordTaskDuration(runnerName, time.Since(start))
	}()
	task(ctx)
}
