package tflow

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-tflow/core"
	"github.com/google/uuid"
)

// Task is one step of a flow. args are the values the previous step passed
// to its continuation (none for the first task). A task must eventually
// invoke c exactly once, directly or through one of its shortcuts; a task
// that never does stalls the flow.
type Task func(c *Continuation, args ...any)

// Callback receives the outcome of a flow: (err) on failure, or
// (nil, results...) on success.
type Callback func(err error, results ...any)

// Continuation is the single handle shared by every task of one flow.
// Its identity never changes during the flow, so a task may keep it and
// invoke it later from another goroutine.
type Continuation struct {
	id       uuid.UUID
	name     string
	tasks    []Task
	callback Callback

	runner  core.TaskRunner
	logger  core.Logger
	metrics core.Metrics

	data      map[string]any
	startedAt time.Time
	done      chan struct{}

	mu       sync.Mutex
	cursor   int
	awaiting bool // a task (or the start) owes the flow exactly one call
	finished bool
	err      error
	results  []any
}

// Run starts a flow over tasks and returns its continuation before any task
// has run. callback may be nil. A nil tasks slice is rejected with
// ErrInvalidArgument; an empty slice is a valid flow that completes with no
// results.
func Run(tasks []Task, callback Callback, opts ...Option) (*Continuation, error) {
	if tasks == nil {
		return nil, ErrInvalidArgument
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.runner == nil {
		o.runner = NamedDefaultTaskRunner(o.name)
	}

	c := &Continuation{
		id:        uuid.New(),
		name:      o.name,
		tasks:     tasks,
		callback:  callback,
		runner:    o.runner,
		logger:    o.logger,
		metrics:   o.metrics,
		data:      make(map[string]any),
		startedAt: time.Now(),
		done:      make(chan struct{}),
		awaiting:  true,
	}

	c.metrics.RecordFlowStarted(c.name)
	c.logger.Debug("flow started", c.fields(core.F("tasks", len(tasks)))...)

	c.Call(nil)
	return c, nil
}

// MustRun is like Run but panics on an invalid argument.
func MustRun(tasks []Task, callback Callback, opts ...Option) *Continuation {
	c, err := Run(tasks, callback, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Call is the continuation itself. A non-nil err ends the flow and is
// delivered to the callback alone. Otherwise values become the arguments of
// the next task, or the results of the flow when no task is left.
//
// err is compared to nil as an interface: a typed nil pointer such as
// (*FlowError)(nil) counts as a failure and reaches the callback unchanged.
func (c *Continuation) Call(err error, values ...any) {
	c.mu.Lock()
	if reason, ok := c.rejectLocked(); !ok {
		c.mu.Unlock()
		c.ignore(reason)
		return
	}
	c.awaiting = false

	if err != nil {
		c.finishLocked(err, nil)
		c.mu.Unlock()
		c.logger.Debug("flow failed", c.fields(core.F("error", err))...)
		c.postCallback(err, nil)
		return
	}

	args := append([]any(nil), values...)
	if c.cursor >= len(c.tasks) {
		c.finishLocked(nil, args)
		c.mu.Unlock()
		c.postCallback(nil, args)
		return
	}

	index := c.cursor
	task := c.tasks[index]
	c.cursor++
	c.mu.Unlock()

	c.runner.PostTask(func(ctx context.Context) {
		c.mu.Lock()
		if c.finished {
			c.mu.Unlock()
			return
		}
		c.awaiting = true
		c.mu.Unlock()

		c.logger.Debug("running task", c.fields(core.F("task", index))...)
		task(c, args...)
	})
}

// Complete skips every remaining task and delivers (nil, values...) to the
// callback.
func (c *Continuation) Complete(values ...any) {
	c.mu.Lock()
	if reason, ok := c.rejectLocked(); !ok {
		c.mu.Unlock()
		c.ignore(reason)
		return
	}
	c.awaiting = false
	args := append([]any(nil), values...)
	c.finishLocked(nil, args)
	c.mu.Unlock()

	c.logger.Debug("flow completed early", c.fields()...)
	c.postCallback(nil, args)
}

// rejectLocked reports why an invocation must be ignored, if it must.
func (c *Continuation) rejectLocked() (string, bool) {
	switch {
	case c.finished:
		return "finished", false
	case !c.awaiting:
		return "no task in flight", false
	default:
		return "", true
	}
}

func (c *Continuation) finishLocked(err error, results []any) {
	c.finished = true
	c.err = err
	c.results = results
}

func (c *Continuation) ignore(reason string) {
	c.metrics.RecordIgnoredCall(c.name, reason)
	c.logger.Warn("continuation called with no effect", c.fields(core.F("reason", reason))...)
}

// postCallback delivers the outcome on a later turn. done is closed even
// if the callback panics.
func (c *Continuation) postCallback(err error, results []any) {
	c.runner.PostTask(func(ctx context.Context) {
		defer c.markDone(err)
		if c.callback != nil {
			c.callback(err, results...)
		}
	})
}

func (c *Continuation) markDone(err error) {
	outcome := core.OutcomeCompleted
	if err != nil {
		outcome = core.OutcomeFailed
	}
	elapsed := time.Since(c.startedAt)
	c.metrics.RecordFlowFinished(c.name, outcome, elapsed)
	c.logger.Debug("flow finished", c.fields(core.F("outcome", outcome), core.F("duration", elapsed))...)
	close(c.done)
}

func (c *Continuation) fields(extra ...core.Field) []core.Field {
	c.mu.Lock()
	cursor := c.cursor
	c.mu.Unlock()
	return append([]core.Field{
		core.F("flow", c.name),
		core.F("flow_id", c.id),
		core.F("cursor", cursor),
	}, extra...)
}
