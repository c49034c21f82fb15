package tflow

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-tflow/core"
)

// manualRunner queues posted tasks until the test drives them, which makes
// every turn of a flow observable from the test goroutine.
type manualRunner struct {
	mu    sync.Mutex
	queue []core.Task
}

func (r *manualRunner) PostTask(task core.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, task)
}

func (r *manualRunner) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// step runs the oldest posted task and reports whether there was one.
func (r *manualRunner) step() bool {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		return false
	}
	task := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()

	task(context.Background())
	return true
}

// drain runs turns until nothing is posted and returns how many ran.
func (r *manualRunner) drain() int {
	n := 0
	for r.step() {
		n++
	}
	return n
}

// outcome records every invocation of a flow callback.
type outcome struct {
	mu    sync.Mutex
	calls int
	err   error
	args  []any
}

func (o *outcome) callback(err error, results ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.err = err
	o.args = results
}

func (o *outcome) get() (calls int, err error, args []any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls, o.err, o.args
}

// flowMetrics records the flow-level calls of core.Metrics.
type flowMetrics struct {
	core.NilMetrics
	mu       sync.Mutex
	started  []string
	finished []string
	ignored  []string
}

func (m *flowMetrics) RecordFlowStarted(flowName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, flowName)
}

func (m *flowMetrics) RecordFlowFinished(flowName string, outcome string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, flowName+":"+outcome)
}

func (m *flowMetrics) RecordIgnoredCall(flowName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored = append(m.ignored, reason)
}

func (m *flowMetrics) snapshot() (started, finished, ignored []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.started...), append([]string(nil), m.finished...), append([]string(nil), m.ignored...)
}

// warnLogger keeps warn messages and drops everything else.
type warnLogger struct {
	core.NoOpLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Warn(msg string, fields ...core.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *warnLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func echo(arg any, done func(err error, values ...any)) {
	done(nil, arg)
}
