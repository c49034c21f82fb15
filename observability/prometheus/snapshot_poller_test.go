package prometheus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tflow "github.com/Swind/go-tflow"
	"github.com/Swind/go-tflow/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type runnerStub struct {
	stats core.RunnerStats
}

func (s runnerStub) Stats() core.RunnerStats { return s.stats }

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

func TestSnapshotPoller_CollectsRunnerAndPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddRunner("runner-a", runnerStub{stats: core.RunnerStats{
		Type:     "sequenced",
		Pending:  3,
		Running:  1,
		Rejected: 2,
		Closed:   true,
	}})
	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Queued:  4,
		Active:  2,
		Workers: 8,
		Running: true,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		pending := testutil.ToFloat64(poller.runnerPending.WithLabelValues("runner-a", "sequenced"))
		active := testutil.ToFloat64(poller.poolActive.WithLabelValues("pool-a"))
		return pending == 3 && active == 2
	})

	if got := testutil.ToFloat64(poller.runnerClosed.WithLabelValues("runner-a", "sequenced")); got != 1 {
		t.Fatalf("runner closed gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolRunning.WithLabelValues("pool-a")); got != 1 {
		t.Fatalf("pool running gauge = %v, want 1", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func TestSnapshotPoller_LivePoolAndRunner(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	pool := tflow.NewGoroutineThreadPool("live-pool", 3)
	pool.Start(context.Background())
	defer pool.Stop()

	runner := core.NewNamedSequencedTaskRunner("live-seq", pool)
	runner.Shutdown()
	runner.PostTask(func(ctx context.Context) {})

	poller.AddPool("live-pool", pool)
	poller.AddRunner("live-seq", runner)
	poller.Start(context.Background())
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		workers := testutil.ToFloat64(poller.poolWorkers.WithLabelValues("live-pool"))
		rejected := testutil.ToFloat64(poller.runnerRejected.WithLabelValues("live-seq", "sequenced"))
		return workers == 3 && rejected == 1
	})
	if got := testutil.ToFloat64(poller.runnerClosed.WithLabelValues("live-seq", "sequenced")); got != 1 {
		t.Fatalf("runner closed gauge = %v, want 1", got)
	}
}

type flowStub struct {
	name     string
	finished atomic.Bool
}

func (f *flowStub) Name() string   { return f.name }
func (f *flowStub) Cursor() int    { return 0 }
func (f *flowStub) Finished() bool { return f.finished.Load() }

func TestSnapshotPoller_TracksFlowsInFlight(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPollerWithNamespace("flows", reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPollerWithNamespace failed: %v", err)
	}

	a, b := &flowStub{name: "import"}, &flowStub{name: "import"}
	poller.TrackFlow(a)
	poller.TrackFlow(b)
	poller.Start(context.Background())
	defer poller.Stop()

	gauge := poller.flowsInFlight.WithLabelValues("import")
	assertEventually(t, 2*time.Second, func() bool { return testutil.ToFloat64(gauge) == 2 })

	a.finished.Store(true)
	assertEventually(t, 2*time.Second, func() bool { return testutil.ToFloat64(gauge) == 1 })

	b.finished.Store(true)
	assertEventually(t, 2*time.Second, func() bool { return testutil.ToFloat64(gauge) == 0 })

	if n, err := testutil.GatherAndCount(reg, "flows_flows_in_flight"); err != nil || n != 1 {
		t.Fatalf("flows_in_flight series = %d (%v), want 1", n, err)
	}
}

func TestSnapshotPoller_TracksRealFlow(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	loop := core.NewSingleThreadTaskRunner()
	defer loop.Stop()

	release := make(chan struct{})
	c := tflow.MustRun([]tflow.Task{
		func(c *tflow.Continuation, _ ...any) {
			go func() {
				<-release
				c.Next()
			}()
		},
	}, nil, tflow.WithName("waiting"), tflow.WithTaskRunner(loop))
	poller.TrackFlow(c)
	poller.Start(context.Background())
	defer poller.Stop()

	gauge := poller.flowsInFlight.WithLabelValues("waiting")
	assertEventually(t, 2*time.Second, func() bool { return testutil.ToFloat64(gauge) == 1 })

	close(release)
	<-c.Done()
	assertEventually(t, 2*time.Second, func() bool { return testutil.ToFloat64(gauge) == 0 })
}

func TestSnapshotPoller_RemoveDeletesSeries(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddRunner("runner-a", runnerStub{stats: core.RunnerStats{Type: "sequenced", Pending: 1}})
	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{Workers: 2}})
	poller.collectOnce()

	if n := testutil.CollectAndCount(poller.runnerPending); n != 1 {
		t.Fatalf("runner series before remove = %d, want 1", n)
	}

	poller.RemoveRunner("runner-a")
	poller.RemovePool("pool-a")
	poller.collectOnce()

	if n := testutil.CollectAndCount(poller.runnerPending); n != 0 {
		t.Fatalf("runner series after remove = %d, want 0", n)
	}
	if n := testutil.CollectAndCount(poller.poolWorkers); n != 0 {
		t.Fatalf("pool series after remove = %d, want 0", n)
	}
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
