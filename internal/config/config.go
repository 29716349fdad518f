// Package config provides configuration management for go-pan.
package config

import (
	"time"

	"github.com/randomizedcoder/go-pan/internal/zoo"
)

// StartsUnset marks a Config whose Starts was not given.
const StartsUnset = -1

// Infinite is the resolved starts budget of a run with no bound.
const Infinite = -1

// Config holds all configuration options for the scheduler.
type Config struct {
	// Identity
	Tag     string `yaml:"tag"`
	ZooPath string `yaml:"zoo"`

	// Work
	CommandFile string   `yaml:"command_file"`
	Command     []string `yaml:"command"` // trailing arguments, run as one entry
	Starts      int      `yaml:"starts"`  // StartsUnset, 0 = infinite, N
	Concurrency int      `yaml:"concurrency"`
	RunTime     RunTime  `yaml:"run_time"` // 0 = no limit
	Sequential  bool     `yaml:"sequential"`
	Seed        int64    `yaml:"seed"` // 0 = time-based
	StopFile    string   `yaml:"stop_file"`

	// Output
	CaptureDir  string `yaml:"capture_dir"`
	LogFile     string `yaml:"log_file"` // "-" = stdout
	Formatted   bool   `yaml:"formatted"`
	Quiet       bool   `yaml:"quiet"`
	ReportType  string `yaml:"report_type"` // rts, none
	OutputFile  string `yaml:"output_file"`
	FailCmdFile string `yaml:"fail_cmd_file"`
	SkipCmdFile string `yaml:"skip_cmd_file"`
	NoKmsg      bool   `yaml:"no_kmsg"`

	// Policy
	AllStop     bool `yaml:"all_stop"`    // stop everything on the first failure
	ExitStatus  bool `yaml:"exit_status"` // exit nonzero when a test fails
	PauseResume bool `yaml:"pause_resume"`

	// Observability
	MetricsAddr   string `yaml:"metrics_addr"` // empty = disabled
	Verbose       bool   `yaml:"verbose"`
	LogFormat     string `yaml:"log_format"` // json, text
	LogLevel      string `yaml:"log_level"`  // debug, info, warn, error
	TUIEnabled    bool   `yaml:"tui"`
	SkipPreflight bool   `yaml:"skip_preflight"`

	// ConfigFile is the YAML file the values were loaded from.
	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ZooPath:     zoo.DefaultPath(),
		Starts:      StartsUnset,
		Concurrency: 1,
		StopFile:    "PAN_STOP_FILE",

		ReportType: "rts",

		LogFormat: "text",
		LogLevel:  "info",
	}
}

// ResolveStarts turns the configured starts into the admission budget for a
// collection of n entries. Infinite means no bound.
func (c *Config) ResolveStarts(n int) int {
	switch {
	case c.Starts == StartsUnset && c.RunTime > 0:
		return Infinite
	case c.Starts == StartsUnset && c.Sequential:
		return n
	case c.Starts == StartsUnset:
		return 1
	case c.Starts == 0:
		return Infinite
	case c.Starts < c.Concurrency:
		return c.Concurrency
	default:
		return c.Starts
	}
}

// EffectiveCaptureDir returns the capture directory, or "" when output
// buffering is pointless because only one test runs at a time.
func (c *Config) EffectiveCaptureDir() string {
	if c.Concurrency == 1 {
		return ""
	}
	return c.CaptureDir
}

// RunDuration returns the wall-clock budget.
func (c *Config) RunDuration() time.Duration {
	return time.Duration(c.RunTime)
}
