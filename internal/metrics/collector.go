// Package metrics provides Prometheus metrics for go-pan.
//
// Metrics describe the scheduler, not the tests: slot occupancy, launch and
// verdict counts, signal broadcasts, orphan groups and test durations.
package metrics

import (
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-pan/internal/report"
)

const namespace = "pan"

// DurationBuckets spans quick syscall tests to long stress tests.
var DurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 3600}

// Collector manages all Prometheus metrics for a run.
type Collector struct {
	startTime time.Time
	runTime   time.Duration

	info           *prometheus.GaugeVec
	maxActive      prometheus.Gauge
	runTimeSeconds prometheus.Gauge
	elapsedSeconds prometheus.Gauge
	remaining      prometheus.Gauge

	activeSlots  prometheus.Gauge
	orphanGroups prometheus.Gauge
	lastSignal   prometheus.Gauge

	testsStarted   prometheus.Counter
	results        *prometheus.CounterVec
	exits          *prometheus.CounterVec
	startFailures  prometheus.Counter
	signals        *prometheus.CounterVec
	signaledGroups prometheus.Counter
	orphansAdopted prometheus.Counter
	orphansGone    prometheus.Counter

	duration    prometheus.Histogram
	durationP50 prometheus.Gauge
	durationP95 prometheus.Gauge
	durationP99 prometheus.Gauge

	mu         sync.Mutex
	peakActive int
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version     string
	Tag         string
	RunID       string
	Concurrency int

	// RunTime is the configured run time; zero means unlimited.
	RunTime time.Duration
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		startTime: time.Now(),
		runTime:   cfg.RunTime,

		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Information about the run (value always 1)",
		}, []string{"version", "tag", "run_id"}),
		maxActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_active_slots",
			Help:      "Configured number of concurrent tests",
		}),
		runTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_time_seconds",
			Help:      "Configured run time (0 = unlimited)",
		}),
		elapsedSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "elapsed_seconds",
			Help:      "Seconds since the run started",
		}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_seconds",
			Help:      "Seconds until the run time alarm (-1 = unlimited)",
		}),

		activeSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_slots",
			Help:      "Currently running tests",
		}),
		orphanGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orphan_groups",
			Help:      "Tracked process groups whose leader has exited",
		}),
		lastSignal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_signal",
			Help:      "Number of the last signal broadcast to tests (0 = none)",
		}),

		testsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tests_started_total",
			Help:      "Tests that reached a running process",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_results_total",
			Help:      "Finished launches by verdict",
		}, []string{"verdict"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_exits_total",
			Help:      "Finished launches by termination status",
		}, []string{"status"}),
		startFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_failures_total",
			Help:      "Launches whose command could not be executed",
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_broadcasts_total",
			Help:      "Signal broadcasts to running tests and orphan groups",
		}, []string{"signal"}),
		signaledGroups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signaled_groups_total",
			Help:      "Process groups reached by signal broadcasts",
		}),
		orphansAdopted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_adopted_total",
			Help:      "Process groups that outlived their leader",
		}),
		orphansGone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphans_gone_total",
			Help:      "Orphan groups that disappeared",
		}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_duration_seconds",
			Help:      "Wall-clock duration of executed tests",
			Buckets:   DurationBuckets,
		}),
		durationP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_duration_p50_seconds",
			Help:      "Test duration 50th percentile",
		}),
		durationP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_duration_p95_seconds",
			Help:      "Test duration 95th percentile",
		}),
		durationP99: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "test_duration_p99_seconds",
			Help:      "Test duration 99th percentile",
		}),
	}

	registry.MustRegister(
		c.info,
		c.maxActive,
		c.runTimeSeconds,
		c.elapsedSeconds,
		c.remaining,
		c.activeSlots,
		c.orphanGroups,
		c.lastSignal,
		c.testsStarted,
		c.results,
		c.exits,
		c.startFailures,
		c.signals,
		c.signaledGroups,
		c.orphansAdopted,
		c.orphansGone,
		c.duration,
		c.durationP50,
		c.durationP95,
		c.durationP99,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.Tag, cfg.RunID).Set(1)
	c.maxActive.Set(float64(cfg.Concurrency))
	c.runTimeSeconds.Set(cfg.RunTime.Seconds())
	c.remaining.Set(-1)

	return c
}

// =============================================================================
// Event Methods
// =============================================================================

// TestStarted records a launch that reached a running process.
func (c *Collector) TestStarted() {
	c.testsStarted.Inc()
}

// RecordResult records a finished launch.
func (c *Collector) RecordResult(r report.Result) {
	c.results.WithLabelValues(r.Verdict.String()).Inc()
	c.exits.WithLabelValues(r.Status).Inc()
	if r.StartFailed() {
		c.startFailures.Inc()
		return
	}
	c.duration.Observe(r.Duration().Seconds())
}

// SignalPropagated records a broadcast of sig that reached n groups.
func (c *Collector) SignalPropagated(sig syscall.Signal, n int) {
	c.signals.WithLabelValues(signalName(sig)).Inc()
	c.signaledGroups.Add(float64(n))
	c.lastSignal.Set(float64(sig))
}

// OrphanAdopted records a process group that outlived its leader.
func (c *Collector) OrphanAdopted() {
	c.orphansAdopted.Inc()
}

// OrphanGone records an orphan group that disappeared.
func (c *Collector) OrphanGone() {
	c.orphansGone.Inc()
}

// Update holds the periodically refreshed gauges.
type Update struct {
	ActiveSlots  int
	OrphanGroups int

	DurationP50 time.Duration
	DurationP95 time.Duration
	DurationP99 time.Duration
}

// RecordUpdate refreshes gauges from the scheduler's current state.
func (c *Collector) RecordUpdate(u Update) {
	c.activeSlots.Set(float64(u.ActiveSlots))
	c.orphanGroups.Set(float64(u.OrphanGroups))
	c.durationP50.Set(u.DurationP50.Seconds())
	c.durationP95.Set(u.DurationP95.Seconds())
	c.durationP99.Set(u.DurationP99.Seconds())

	elapsed := time.Since(c.startTime)
	c.elapsedSeconds.Set(elapsed.Seconds())
	if c.runTime > 0 {
		left := c.runTime - elapsed
		if left < 0 {
			left = 0
		}
		c.remaining.Set(left.Seconds())
	}

	c.mu.Lock()
	if u.ActiveSlots > c.peakActive {
		c.peakActive = u.ActiveSlots
	}
	c.mu.Unlock()
}

// PeakActive returns the peak active slot count seen by RecordUpdate.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// =============================================================================
// Helper Functions
// =============================================================================

// signalName returns the short name used as a label, e.g. SIGTERM.
func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGUSR1:
		return "SIGUSR1"
	case syscall.SIGUSR2:
		return "SIGUSR2"
	case syscall.SIGALRM:
		return "SIGALRM"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "SIG" + strconv.Itoa(int(sig))
	}
}
