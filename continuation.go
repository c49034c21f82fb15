package tflow

import (
	"context"

	"github.com/Swind/go-tflow/core"
	"github.com/google/uuid"
)

// Next advances the flow with values, same as c.Call(nil, values...).
func (c *Continuation) Next(values ...any) {
	c.Call(nil, values...)
}

// Fail ends the flow with err. A string (or any non-error value) becomes a
// *FlowError carrying it as Message; an error is delivered unchanged.
func (c *Continuation) Fail(err any) {
	c.Call(toError(err))
}

// FailWithStatus ends the flow with a *FlowError whose Status is status.
// A zero status behaves like Fail.
func (c *Continuation) FailWithStatus(status int, err any) {
	c.Call(withStatus(toError(err), status))
}

// Send returns a callback that advances the flow with values, whatever the
// caller passes besides its error.
func (c *Continuation) Send(values ...any) func(err error, ignored ...any) {
	fixed := append([]any(nil), values...)
	return func(err error, _ ...any) {
		c.Call(err, fixed...)
	}
}

// Join returns a callback that advances the flow with values followed by the
// caller's own results.
func (c *Continuation) Join(values ...any) func(err error, rest ...any) {
	prefix := append([]any(nil), values...)
	return func(err error, rest ...any) {
		args := make([]any, 0, len(prefix)+len(rest))
		args = append(args, prefix...)
		c.Call(err, append(args, rest...)...)
	}
}

// Append returns a callback that advances the flow with the caller's own
// results followed by values.
func (c *Continuation) Append(values ...any) func(err error, rest ...any) {
	suffix := append([]any(nil), values...)
	return func(err error, rest ...any) {
		args := make([]any, 0, len(rest)+len(suffix))
		args = append(args, rest...)
		c.Call(err, append(args, suffix...)...)
	}
}

// Runner returns the task runner every transition of the flow is posted to.
func (c *Continuation) Runner() core.TaskRunner {
	return c.runner
}

// Callback returns c.Call as a plain callback value, for APIs that take
// func(err error, results ...any).
func (c *Continuation) Callback() func(err error, values ...any) {
	return c.Call
}

// ID identifies the flow in logs and metrics.
func (c *Continuation) ID() uuid.UUID {
	return c.id
}

// Name returns the flow name set with WithName.
func (c *Continuation) Name() string {
	return c.name
}

// Data is the scratch map shared by the tasks of this flow. It starts empty
// and is never read by the flow itself. Tasks run one after another, so
// access from task bodies needs no locking.
func (c *Continuation) Data() map[string]any {
	return c.data
}

// Cursor returns the index of the next task to run.
func (c *Continuation) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Finished reports whether the flow has reached its outcome. The callback may
// still be pending.
func (c *Continuation) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Done is closed once the callback has returned (or would have, when nil).
func (c *Continuation) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until Done is closed and returns the flow outcome. ctx bounds
// the wait only; the flow keeps running when ctx ends.
func (c *Continuation) Wait(ctx context.Context) ([]any, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results, c.err
}
