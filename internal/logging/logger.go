// Package logging builds go-pan's diagnostic logger and scans captured test
// output for result keywords.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects how the diagnostic log is written. It is separate from
// the result log.
type Options struct {
	Format  string    // "json" or "text"; anything else is text
	Level   string    // "debug", "info", "warn" or "error"; empty is info
	Verbose bool      // forces debug with source locations
	Output  io.Writer // nil is stderr
}

// New creates the scheduler's logger.
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.Verbose,
	}
	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(out, hopts)), nil
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
