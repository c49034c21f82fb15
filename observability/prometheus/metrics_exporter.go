package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-tflow/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "tflow"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets     []float64
	FlowDurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	flowStartedTotal    *prom.CounterVec
	flowFinishedTotal   *prom.CounterVec
	flowDurationSeconds *prom.HistogramVec
	ignoredCallsTotal   *prom.CounterVec

	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	queueDepth          *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Registering twice against the same registry reuses the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	flowBuckets := opts.FlowDurationBuckets
	if len(flowBuckets) == 0 {
		flowBuckets = buckets
	}

	startedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "flow_started_total",
		Help:      "Total number of flows started.",
	}, []string{"flow"})
	finishedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "flow_finished_total",
		Help:      "Total number of flows whose callback ran, by outcome.",
	}, []string{"flow", "outcome"})
	flowDurationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "flow_duration_seconds",
		Help:      "Time from Run to the end of the flow callback in seconds.",
		Buckets:   flowBuckets,
	}, []string{"flow", "outcome"})
	ignoredVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "ignored_calls_total",
		Help:      "Total number of continuation invocations that had no effect.",
	}, []string{"flow", "reason"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"runner"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"runner"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected tasks.",
	}, []string{"runner", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current queue depth.",
	}, []string{"runner"})

	var err error
	if startedVec, err = registerCollector(reg, startedVec); err != nil {
		return nil, err
	}
	if finishedVec, err = registerCollector(reg, finishedVec); err != nil {
		return nil, err
	}
	if flowDurationVec, err = registerCollector(reg, flowDurationVec); err != nil {
		return nil, err
	}
	if ignoredVec, err = registerCollector(reg, ignoredVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		flowStartedTotal:    startedVec,
		flowFinishedTotal:   finishedVec,
		flowDurationSeconds: flowDurationVec,
		ignoredCallsTotal:   ignoredVec,
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		taskRejectedTotal:   rejectedVec,
		queueDepth:          queueDepthVec,
	}, nil
}

// RecordFlowStarted counts a started flow.
func (m *MetricsExporter) RecordFlowStarted(flowName string) {
	if m == nil {
		return
	}
	m.flowStartedTotal.WithLabelValues(normalizeLabel(flowName, "unknown")).Inc()
}

// RecordFlowFinished counts a finished flow and observes its duration.
func (m *MetricsExporter) RecordFlowFinished(flowName string, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	flow := normalizeLabel(flowName, "unknown")
	out := normalizeLabel(outcome, "unknown")
	m.flowFinishedTotal.WithLabelValues(flow, out).Inc()
	m.flowDurationSeconds.WithLabelValues(flow, out).Observe(d.Seconds())
}

// RecordIgnoredCall counts a continuation invocation that had no effect.
func (m *MetricsExporter) RecordIgnoredCall(flowName string, reason string) {
	if m == nil {
		return
	}
	m.ignoredCallsTotal.WithLabelValues(normalizeLabel(flowName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(runnerName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(runnerName, "unknown")).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(runnerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(runnerName, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
