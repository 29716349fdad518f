package report

import (
	"bytes"
	"fmt"
	"time"
)

// Platform identifies the machine a run happened on.
type Platform struct {
	Release  string
	Machine  string
	Hostname string
}

// Summary closes a formatted result log.
type Summary struct {
	TotalTests int
	Skipped    int
	Failures   int
	Platform   Platform

	// Starts is the number of launches the percentiles cover.
	Starts      int
	DurationP50 time.Duration
	DurationP95 time.Duration
	DurationP99 time.Duration
}

// Summary appends the run totals to a formatted log. Raw logs end without one.
func (w *Writer) Summary(s Summary) error {
	if w.cfg.Log == nil || !w.cfg.Formatted {
		return nil
	}

	var b bytes.Buffer
	b.WriteString("\n-----------------------------------------------\n")
	fmt.Fprintf(&b, "Total Tests: %d\n", s.TotalTests)
	fmt.Fprintf(&b, "Total Skipped Tests: %d\n", s.Skipped)
	fmt.Fprintf(&b, "Total Failures: %d\n", s.Failures)
	fmt.Fprintf(&b, "Kernel Version: %s\n", s.Platform.Release)
	fmt.Fprintf(&b, "Machine Architecture: %s\n", s.Platform.Machine)
	fmt.Fprintf(&b, "Hostname: %s\n", s.Platform.Hostname)
	if s.Starts > 0 {
		fmt.Fprintf(&b, "Duration P50: %s\n", s.DurationP50.Round(time.Millisecond))
		fmt.Fprintf(&b, "Duration P95: %s\n", s.DurationP95.Round(time.Millisecond))
		fmt.Fprintf(&b, "Duration P99: %s\n", s.DurationP99.Round(time.Millisecond))
	}
	b.WriteString("\n")

	if _, err := w.cfg.Log.Write(b.Bytes()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
