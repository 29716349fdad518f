package stats

// This file implements the exit summary printed to stderr when a run ends.

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Tag is the run's registry tag.
	Tag string

	// RunID identifies the run in logs and metrics.
	RunID string

	// Concurrency is the configured number of slots.
	Concurrency int

	// MetricsAddr is the Prometheus metrics endpoint address.
	MetricsAddr string

	// ExitStatus is the status the scheduler is about to exit with.
	ExitStatus int
}

// FormatExitSummary formats s for display at program exit.
func FormatExitSummary(s Snapshot, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                              go-pan Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	fmt.Fprintf(&b, "Run Tag:                %s\n", cfg.Tag)
	if cfg.RunID != "" {
		fmt.Fprintf(&b, "Run ID:                 %s\n", cfg.RunID)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Elapsed))
	fmt.Fprintf(&b, "Concurrency:            %d\n", cfg.Concurrency)
	fmt.Fprintf(&b, "Peak Active Tests:      %d\n", s.PeakActive)
	fmt.Fprintf(&b, "Exit Status:            %d\n\n", cfg.ExitStatus)

	section(&b, "Results")
	fmt.Fprintf(&b, "  Launched:             %s\n", FormatNumber(s.Completed))
	fmt.Fprintf(&b, "  Passed:               %s\n", FormatNumber(s.Passed))
	fmt.Fprintf(&b, "  Failed:               %s\n", FormatNumber(s.Failed))
	fmt.Fprintf(&b, "  Skipped (TCONF):      %s\n", FormatNumber(s.Skipped))
	fmt.Fprintf(&b, "  Stopped:              %s\n", FormatNumber(s.Stopped))
	if s.StartFailures > 0 {
		fmt.Fprintf(&b, "  Failed to start:      %s\n", FormatNumber(s.StartFailures))
	}
	b.WriteString("\n")

	if s.Measured > 0 {
		section(&b, "Test Duration")
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatMs(s.DurationP50))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatMs(s.DurationP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatMs(s.DurationP99))
		fmt.Fprintf(&b, "  Max:                  %s\n\n", FormatMs(s.DurationMax))
	}

	if s.Orphans > 0 || len(s.Signals) > 0 {
		section(&b, "Termination")
		if s.Orphans > 0 {
			fmt.Fprintf(&b, "  Orphan groups:        %d (%d gone)\n", s.Orphans, s.OrphansGone)
		}
		names := make([]string, 0, len(s.Signals))
		for name := range s.Signals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  Signal %-14s %d\n", name+":", s.Signals[name])
		}
		b.WriteString("\n")
	}

	if len(s.ExitCodes) > 0 {
		section(&b, "Exit Codes")
		codes := make([]int, 0, len(s.ExitCodes))
		for code := range s.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), s.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(heavyRule)

	return b.String()
}

func section(b *strings.Builder, title string) {
	b.WriteString(lightRule)
	pad := (len([]rune(lightRule)) - 1 - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(lightRule + "\n")
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(pass)"
	case 1:
		return "(fail)"
	case 2:
		return "(broken)"
	case 4:
		return "(warn)"
	case 32:
		return "(conf)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
