package stats

import (
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/randomizedcoder/go-pan/internal/report"
)

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func result(tag string, verdict report.Verdict, code int, dur time.Duration) report.Result {
	return report.Result{
		Test:       report.Test{Tag: tag, CmdLine: tag, Start: epoch},
		End:        epoch.Add(dur),
		Code:       code,
		InitStatus: report.InitOK,
		Verdict:    verdict,
	}
}

func TestRun_RecordResult(t *testing.T) {
	r := NewRun(epoch)

	r.TestStarted()
	r.TestStarted()
	r.TestStarted()
	r.RecordResult(result("a", report.VerdictPass, 0, time.Second))
	r.RecordResult(result("b", report.VerdictFail, 1, 2*time.Second))
	r.RecordResult(result("c", report.VerdictConf, report.TCONF, 3*time.Second))
	r.RecordResult(result("d", report.VerdictStopped, 143, 4*time.Second))

	notRun := result("e", report.VerdictFail, 2, 0)
	notRun.InitStatus = "no such file or directory"
	r.RecordResult(notRun)

	s := r.Snapshot(epoch.Add(time.Minute))

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"started", s.Started, 3},
		{"completed", s.Completed, 5},
		{"passed", s.Passed, 1},
		{"failed", s.Failed, 2},
		{"skipped", s.Skipped, 1},
		{"stopped", s.Stopped, 1},
		{"start failures", s.StartFailures, 1},
		{"measured", s.Measured, 4},
		{"exit 0", s.ExitCodes[0], 1},
		{"exit 32", s.ExitCodes[32], 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if s.Elapsed != time.Minute {
		t.Errorf("Elapsed = %v, want 1m", s.Elapsed)
	}
	if s.DurationMax != 4*time.Second {
		t.Errorf("DurationMax = %v, want 4s", s.DurationMax)
	}
	if s.DurationP50 < time.Second || s.DurationP50 > 4*time.Second {
		t.Errorf("DurationP50 = %v, outside the recorded range", s.DurationP50)
	}
}

func TestRun_Percentiles(t *testing.T) {
	r := NewRun(epoch)
	for i := 1; i <= 1000; i++ {
		r.RecordResult(result("t", report.VerdictPass, 0, time.Duration(i)*time.Millisecond))
	}
	s := r.Snapshot(epoch)

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"p50", s.DurationP50, 500 * time.Millisecond},
		{"p95", s.DurationP95, 950 * time.Millisecond},
		{"p99", s.DurationP99, 990 * time.Millisecond},
	}
	for _, tt := range tests {
		diff := tt.got - tt.want
		if diff < 0 {
			diff = -diff
		}
		if diff > 30*time.Millisecond {
			t.Errorf("%s = %v, want about %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestRun_EmptySnapshot(t *testing.T) {
	s := NewRun(epoch).Snapshot(epoch)
	if s.Measured != 0 || s.DurationP50 != 0 || s.DurationP99 != 0 {
		t.Errorf("empty run has durations: %+v", s)
	}
	if s.ExitCodes == nil || s.Signals == nil {
		t.Error("snapshot maps should be allocated")
	}
}

func TestRun_SignalsOrphansPeak(t *testing.T) {
	r := NewRun(epoch)
	r.SignalPropagated(syscall.SIGINT)
	r.SignalPropagated(syscall.SIGINT)
	r.SignalPropagated(syscall.SIGTERM)
	r.OrphanAdopted()
	r.OrphanAdopted()
	r.OrphanGone()
	r.SetActive(3)
	r.SetActive(7)
	r.SetActive(2)

	s := r.Snapshot(epoch)
	if s.Signals[syscall.SIGINT.String()] != 2 || s.Signals[syscall.SIGTERM.String()] != 1 {
		t.Errorf("Signals = %v", s.Signals)
	}
	if s.Orphans != 2 || s.OrphansGone != 1 {
		t.Errorf("Orphans = %d gone %d, want 2 gone 1", s.Orphans, s.OrphansGone)
	}
	if s.PeakActive != 7 {
		t.Errorf("PeakActive = %d, want 7", s.PeakActive)
	}

	// Snapshot maps are copies.
	s.Signals["x"] = 1
	if _, ok := r.Snapshot(epoch).Signals["x"]; ok {
		t.Error("Snapshot exposed internal state")
	}
}

func TestSnapshot_ReportSummary(t *testing.T) {
	s := Snapshot{Completed: 9, Skipped: 2, Failed: 3, Measured: 8, DurationP95: time.Second}
	p := report.Platform{Release: "6.1.0", Machine: "x86_64", Hostname: "box"}

	got := s.ReportSummary(p, 4)
	want := report.Summary{TotalTests: 4, Skipped: 2, Failures: 3, Platform: p, Starts: 8, DurationP95: time.Second}
	if got != want {
		t.Errorf("ReportSummary = %+v, want %+v", got, want)
	}
}

func TestRun_ThreadSafety(t *testing.T) {
	r := NewRun(epoch)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.TestStarted()
				r.RecordResult(result("t", report.VerdictPass, 0, time.Millisecond))
				r.SetActive(j)
				_ = r.Snapshot(epoch)
			}
		}()
	}
	wg.Wait()

	if s := r.Snapshot(epoch); s.Completed != 800 || s.Started != 800 {
		t.Errorf("Completed = %d Started = %d, want 800", s.Completed, s.Started)
	}
}
