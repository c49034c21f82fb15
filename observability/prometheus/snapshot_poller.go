package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-tflow/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// FlowSnapshotProvider is the part of *tflow.Continuation the poller reads.
type FlowSnapshotProvider interface {
	Name() string
	Cursor() int
	Finished() bool
}

// SnapshotPoller periodically exports runner, pool and in-flight flow
// snapshots into Prometheus gauges. Tracked flows are dropped once they
// report Finished.
type SnapshotPoller struct {
	interval time.Duration

	mu      sync.RWMutex
	runners map[string]RunnerSnapshotProvider
	pools   map[string]PoolSnapshotProvider
	flows   map[FlowSnapshotProvider]struct{}

	runnerPending  *prom.GaugeVec
	runnerRunning  *prom.GaugeVec
	runnerRejected *prom.GaugeVec
	runnerClosed   *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	flowsInFlight *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller under the default namespace
// and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	return NewSnapshotPollerWithNamespace(defaultNamespace, reg, interval)
}

// NewSnapshotPollerWithNamespace is NewSnapshotPoller with a custom metric namespace.
func NewSnapshotPollerWithNamespace(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	namespace = normalizeLabel(namespace, defaultNamespace)
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	p := &SnapshotPoller{
		interval: interval,
		runners:  make(map[string]RunnerSnapshotProvider),
		pools:    make(map[string]PoolSnapshotProvider),
		flows:    make(map[FlowSnapshotProvider]struct{}),
	}

	runnerLabels := []string{"runner", "type"}
	poolLabels := []string{"pool"}
	gauges := []struct {
		dst    **prom.GaugeVec
		name   string
		help   string
		labels []string
	}{
		{&p.runnerPending, "runner_pending", "Number of pending tasks per runner.", runnerLabels},
		{&p.runnerRunning, "runner_running", "Number of running tasks per runner.", runnerLabels},
		{&p.runnerRejected, "runner_rejected_total", "Runner rejected task count snapshot.", runnerLabels},
		{&p.runnerClosed, "runner_closed", "Runner closed state (1=closed, 0=open).", runnerLabels},
		{&p.poolQueued, "pool_queued", "Queued tasks per pool.", poolLabels},
		{&p.poolActive, "pool_active", "Active tasks per pool.", poolLabels},
		{&p.poolWorkers, "pool_workers", "Worker count per pool.", poolLabels},
		{&p.poolRunning, "pool_running", "Pool running state (1=running, 0=stopped).", poolLabels},
		{&p.flowsInFlight, "flows_in_flight", "Tracked flows that have not finished, per flow name.", []string{"flow"}},
	}
	for _, g := range gauges {
		vec, err := registerCollector(reg, prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      g.name,
			Help:      g.help,
		}, g.labels))
		if err != nil {
			return nil, err
		}
		*g.dst = vec
	}

	return p, nil
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.runners[normalizeLabel(name, "runner")] = provider
	p.mu.Unlock()
}

// RemoveRunner stops polling a runner and deletes its series.
func (p *SnapshotPoller) RemoveRunner(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "runner")
	p.mu.Lock()
	delete(p.runners, name)
	p.mu.Unlock()

	match := prom.Labels{"runner": name}
	for _, vec := range []*prom.GaugeVec{p.runnerPending, p.runnerRunning, p.runnerRejected, p.runnerClosed} {
		vec.DeletePartialMatch(match)
	}
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.pools[normalizeLabel(name, "pool")] = provider
	p.mu.Unlock()
}

// RemovePool stops polling a pool and deletes its series.
func (p *SnapshotPoller) RemovePool(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.mu.Lock()
	delete(p.pools, name)
	p.mu.Unlock()

	for _, vec := range []*prom.GaugeVec{p.poolQueued, p.poolActive, p.poolWorkers, p.poolRunning} {
		vec.DeleteLabelValues(name)
	}
}

// TrackFlow counts flow in flows_in_flight until it finishes.
func (p *SnapshotPoller) TrackFlow(flow FlowSnapshotProvider) {
	if p == nil || flow == nil {
		return
	}
	p.mu.Lock()
	p.flows[flow] = struct{}{}
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.running {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()

	cancel()
	<-done
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p *SnapshotPoller) collectOnce() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerRunning.WithLabelValues(name, typeLabel).Set(float64(stats.Running))
		p.runnerRejected.WithLabelValues(name, typeLabel).Set(float64(stats.Rejected))
		p.runnerClosed.WithLabelValues(name, typeLabel).Set(boolGauge(stats.Closed))
	}

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}

	// Names seen this round are reset so a name whose flows all finished drops to 0.
	inFlight := make(map[string]int)
	for flow := range p.flows {
		name := normalizeLabel(flow.Name(), "unknown")
		if flow.Finished() {
			delete(p.flows, flow)
			if _, ok := inFlight[name]; !ok {
				inFlight[name] = 0
			}
			continue
		}
		inFlight[name]++
	}
	for name, n := range inFlight {
		p.flowsInFlight.WithLabelValues(name).Set(float64(n))
	}
}
