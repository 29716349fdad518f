// Package stats accumulates run-wide statistics for the scheduler: launch
// and verdict counts, signal broadcasts, orphan groups and test durations.
package stats

import (
	"sync"
	"syscall"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-pan/internal/report"
)

// Run collects statistics for one scheduler run. It is safe for concurrent
// use: the scheduler records while the dashboard and metrics read.
type Run struct {
	mu        sync.Mutex
	startTime time.Time

	started       int64
	completed     int64
	passed        int64
	failed        int64
	skipped       int64
	stopped       int64
	startFailures int64
	orphans       int64
	orphansGone   int64
	peakActive    int

	exitCodes map[int]int64
	signals   map[string]int64

	durations   *tdigest.TDigest
	measured    int64
	maxDuration time.Duration
}

// NewRun creates a Run that started at start.
func NewRun(start time.Time) *Run {
	return &Run{
		startTime: start,
		exitCodes: make(map[int]int64),
		signals:   make(map[string]int64),
		durations: tdigest.NewWithCompression(100),
	}
}

// TestStarted records a launch that reached a running process.
func (r *Run) TestStarted() {
	r.mu.Lock()
	r.started++
	r.mu.Unlock()
}

// RecordResult records a finished launch, including launches that failed to start.
func (r *Run) RecordResult(res report.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completed++
	r.exitCodes[res.Code]++

	switch res.Verdict {
	case report.VerdictPass:
		r.passed++
	case report.VerdictConf:
		r.skipped++
	case report.VerdictStopped:
		r.stopped++
	default:
		r.failed++
	}

	if res.StartFailed() {
		r.startFailures++
		return
	}

	d := res.Duration()
	if d < 0 {
		d = 0
	}
	r.durations.Add(float64(d.Nanoseconds()), 1)
	r.measured++
	if d > r.maxDuration {
		r.maxDuration = d
	}
}

// SignalPropagated records a broadcast of sig.
func (r *Run) SignalPropagated(sig syscall.Signal) {
	r.mu.Lock()
	r.signals[sig.String()]++
	r.mu.Unlock()
}

// OrphanAdopted records a process group that outlived its leader.
func (r *Run) OrphanAdopted() {
	r.mu.Lock()
	r.orphans++
	r.mu.Unlock()
}

// OrphanGone records an orphan group that disappeared.
func (r *Run) OrphanGone() {
	r.mu.Lock()
	r.orphansGone++
	r.mu.Unlock()
}

// SetActive records the current number of running tests.
func (r *Run) SetActive(n int) {
	r.mu.Lock()
	if n > r.peakActive {
		r.peakActive = n
	}
	r.mu.Unlock()
}

// Snapshot is a point-in-time copy of a Run.
type Snapshot struct {
	Elapsed time.Duration

	Started       int64
	Completed     int64
	Passed        int64
	Failed        int64
	Skipped       int64
	Stopped       int64
	StartFailures int64
	Orphans       int64
	OrphansGone   int64
	PeakActive    int

	ExitCodes map[int]int64
	Signals   map[string]int64

	// Measured is the number of executed tests the durations cover.
	Measured    int64
	DurationP50 time.Duration
	DurationP95 time.Duration
	DurationP99 time.Duration
	DurationMax time.Duration
}

// Snapshot copies the current statistics.
func (r *Run) Snapshot(now time.Time) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		Elapsed:       now.Sub(r.startTime),
		Started:       r.started,
		Completed:     r.completed,
		Passed:        r.passed,
		Failed:        r.failed,
		Skipped:       r.skipped,
		Stopped:       r.stopped,
		StartFailures: r.startFailures,
		Orphans:       r.orphans,
		OrphansGone:   r.orphansGone,
		PeakActive:    r.peakActive,
		ExitCodes:     make(map[int]int64, len(r.exitCodes)),
		Signals:       make(map[string]int64, len(r.signals)),
		Measured:      r.measured,
		DurationMax:   r.maxDuration,
	}
	for code, n := range r.exitCodes {
		s.ExitCodes[code] = n
	}
	for sig, n := range r.signals {
		s.Signals[sig] = n
	}

	if r.measured > 0 {
		s.DurationP50 = time.Duration(r.durations.Quantile(0.50))
		s.DurationP95 = time.Duration(r.durations.Quantile(0.95))
		s.DurationP99 = time.Duration(r.durations.Quantile(0.99))
	}
	return s
}

// ReportSummary converts s into the closing block of a formatted result log.
// totalTests is the number of commands in the collection.
func (s Snapshot) ReportSummary(p report.Platform, totalTests int) report.Summary {
	return report.Summary{
		TotalTests:  totalTests,
		Skipped:     int(s.Skipped),
		Failures:    int(s.Failed),
		Platform:    p,
		Starts:      int(s.Measured),
		DurationP50: s.DurationP50,
		DurationP95: s.DurationP95,
		DurationP99: s.DurationP99,
	}
}
