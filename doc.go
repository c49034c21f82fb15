// Package tflow runs tasks in series, each passing its results to the next.
//
// If any task reports an error, the remaining tasks are skipped and the final
// callback receives the error alone. Otherwise the callback receives the
// results of the last task.
//
// Every task receives the same *Continuation. Invoking it (Call, or one of
// the shortcuts Next, Fail, FailWithStatus, Complete) decides what happens
// next; Send, Join and Append build forwarding callbacks for APIs that take
// a func(err error, results ...any).
//
// # Quick Start
//
//	c, err := tflow.Run([]tflow.Task{
//		func(c *tflow.Continuation, _ ...any) {
//			c.Next("one")
//		},
//		func(c *tflow.Continuation, args ...any) {
//			c.Call(nil, "first", "second", "third")
//		},
//		func(c *tflow.Continuation, args ...any) {
//			c.Complete("done")
//		},
//	}, func(err error, results ...any) {
//		fmt.Println(err, results) // <nil> [done]
//	})
//
// # Scheduling
//
// No transition ever happens synchronously: starting the flow, running the
// next task and invoking the callback are all posted to a core.TaskRunner,
// so Run returns before the first task runs. Posted work runs in FIFO order
// and the tasks of one flow never overlap.
//
// When no runner is passed with WithTaskRunner, DefaultTaskRunner chooses a
// SequencedTaskRunner on the global pool if InitGlobalThreadPool was called,
// and a process-wide single-goroutine event loop otherwise. A pool runner is
// named after the flow, so its metrics carry the flow name.
//
// GoroutineThreadPool.StopGraceful lets flows already running on the pool
// finish before the workers exit.
//
//	tflow.InitGlobalThreadPool(4)
//	defer tflow.ShutdownGlobalThreadPool()
//
// # Misuse
//
// Run with a nil task slice fails immediately with ErrInvalidArgument. A
// continuation invoked after the flow ended, or twice by the same task, has
// no effect; the call is logged at warn level and counted with
// Metrics.RecordIgnoredCall. A task that panics is recovered by its runner
// and its flow does not advance.
package tflow
