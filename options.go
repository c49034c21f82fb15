package tflow

import "github.com/Swind/go-tflow/core"

const defaultFlowName = "tflow"

// Option configures a single Run.
type Option func(*options)

type options struct {
	name    string
	runner  core.TaskRunner
	logger  core.Logger
	metrics core.Metrics
}

func defaultOptions() options {
	return options{
		name:    defaultFlowName,
		logger:  core.NewNoOpLogger(),
		metrics: &core.NilMetrics{},
	}
}

// WithName sets the flow name used in log fields and metric labels.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithTaskRunner sets the runner every transition of the flow is posted to.
// The runner must preserve FIFO order. Defaults to DefaultTaskRunner().
func WithTaskRunner(runner core.TaskRunner) Option {
	return func(o *options) {
		o.runner = runner
	}
}

// WithLogger sets the flow logger. Defaults to a no-op logger.
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the flow metrics sink. Defaults to core.NilMetrics.
func WithMetrics(metrics core.Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}
