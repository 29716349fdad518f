package stats

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: Formatting Functions
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "00:00:00"},
		{"one second", time.Second, "00:00:01"},
		{"one minute", time.Minute, "00:01:00"},
		{"one hour", time.Hour, "01:00:00"},
		{"mixed", 2*time.Hour + 30*time.Minute + 45*time.Second, "02:30:45"},
		{"24 hours", 24 * time.Hour, "24:00:00"},
		{"sub-second", 500 * time.Millisecond, "00:00:00"},
		{"59 seconds", 59 * time.Second, "00:00:59"},
		{"59 minutes", 59 * time.Minute, "00:59:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0"},
		{"small", 123, "123"},
		{"999", 999, "999"},
		{"1K", 1000, "1.0K"},
		{"1.5K", 1500, "1.5K"},
		{"10K", 10000, "10.0K"},
		{"999K", 999000, "999.0K"},
		{"1M", 1000000, "1.0M"},
		{"1.5M", 1500000, "1.5M"},
		{"10M", 10000000, "10.0M"},
		{"negative", -100, "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNumber(tt.n); got != tt.want {
				t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}


func TestFormatMs(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0 ms"},
		{"1 ms", time.Millisecond, "1 ms"},
		{"100 ms", 100 * time.Millisecond, "100 ms"},
		{"1 second", time.Second, "1000 ms"},
		{"sub-ms", 500 * time.Microsecond, "500 µs"},
		{"1 us", time.Microsecond, "1 µs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMs(tt.duration); got != tt.want {
				t.Errorf("FormatMs(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}


func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "(pass)"},
		{1, "(fail)"},
		{2, "(broken)"},
		{4, "(warn)"},
		{32, "(conf)"},
		{130, "(SIGINT)"},
		{137, "(SIGKILL)"},
		{143, "(SIGTERM)"},
		{-1, ""},
		{255, ""},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			if got := exitCodeLabel(tt.code); got != tt.want {
				t.Errorf("exitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: FormatExitSummary
// =============================================================================

func TestFormatExitSummary_Basic(t *testing.T) {
	s := Snapshot{
		Elapsed:    90 * time.Second,
		Completed:  10,
		Passed:     7,
		Failed:     2,
		Skipped:    1,
		PeakActive: 4,
	}
	out := FormatExitSummary(s, SummaryConfig{Tag: "pan-1", RunID: "abc", Concurrency: 4, ExitStatus: 1})

	for _, want := range []string{
		"go-pan Exit Summary",
		"Run Tag:                pan-1",
		"Run ID:                 abc",
		"Run Duration:           00:01:30",
		"Concurrency:            4",
		"Peak Active Tests:      4",
		"Exit Status:            1",
		"Passed:               7",
		"Failed:               2",
		"Skipped (TCONF):      1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
	for _, absent := range []string{"Test Duration", "Termination", "Exit Codes", "Failed to start", "Metrics endpoint"} {
		if strings.Contains(out, absent) {
			t.Errorf("summary unexpectedly contains %q", absent)
		}
	}
}

func TestFormatExitSummary_Sections(t *testing.T) {
	s := Snapshot{
		Completed:     3,
		StartFailures: 1,
		Orphans:       2,
		OrphansGone:   1,
		Signals:       map[string]int64{"terminated": 1, "interrupt": 2},
		ExitCodes:     map[int]int64{0: 1, 32: 1, 2: 1},
		Measured:      2,
		DurationP50:   150 * time.Millisecond,
		DurationMax:   2 * time.Second,
	}
	out := FormatExitSummary(s, SummaryConfig{Tag: "t", MetricsAddr: "127.0.0.1:9100"})

	for _, want := range []string{
		"Failed to start:      1",
		"P50 (median):         150 ms",
		"Max:                  2000 ms",
		"Orphan groups:        2 (1 gone)",
		"interrupt:",
		"terminated:",
		" 32 (conf)",
		"Metrics endpoint was: http://127.0.0.1:9100/metrics",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}

	// Signals and exit codes are sorted.
	if strings.Index(out, "interrupt:") > strings.Index(out, "terminated:") {
		t.Error("signals not sorted")
	}
	if strings.Index(out, "  0 (pass)") > strings.Index(out, "  2 (broken)") {
		t.Error("exit codes not sorted")
	}
}

func BenchmarkFormatExitSummary(b *testing.B) {
	s := Snapshot{
		Completed: 1000,
		Passed:    990,
		Failed:    10,
		ExitCodes: map[int]int64{0: 990, 1: 10},
		Measured:  1000,
	}
	cfg := SummaryConfig{Tag: "bench", Concurrency: 16}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = FormatExitSummary(s, cfg)
	}
}
