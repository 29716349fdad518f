package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// ErrHelp is returned by ParseFlags when -h or -help was given.
var ErrHelp = flag.ErrHelp

// ParseFlags parses command-line arguments (without the program name) and
// returns a Config. Values from a -config file are applied first so that
// flags override them.
func ParseFlags(args []string, stderr io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	pre := newFlagSet(DefaultConfig(), io.Discard)
	_ = pre.Parse(args)
	if path := pre.Lookup("config").Value.String(); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	fs := newFlagSet(cfg, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, err
	}

	if cfg.AllStop {
		cfg.ExitStatus = true
	}

	// Positional arguments: one literal command
	if rest := fs.Args(); len(rest) > 0 {
		cfg.Command = rest
	}

	return cfg, nil
}

func newFlagSet(cfg *Config, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("go-pan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Custom usage message
	fs.Usage = func() {
		fmt.Fprintf(stderr, `go-pan - parallel test scheduler with process-group supervision

Usage:
  go-pan -n tag [flags] [command...]

Identity:
`)
		printFlagCategory(fs, stderr, []string{"n", "a", "config"})

		fmt.Fprintf(stderr, "\nWork:\n")
		printFlagCategory(fs, stderr, []string{"f", "s", "x", "t", "S", "seed", "stop-file"})

		fmt.Fprintf(stderr, "\nOutput:\n")
		printFlagCategory(fs, stderr, []string{"O", "l", "p", "q", "r", "o", "C", "T", "Q"})

		fmt.Fprintf(stderr, "\nPolicy:\n")
		printFlagCategory(fs, stderr, []string{"A", "e", "y"})

		fmt.Fprintf(stderr, "\nObservability:\n")
		printFlagCategory(fs, stderr, []string{"metrics", "v", "log-format", "log-level", "tui", "skip-preflight"})

		fmt.Fprintf(stderr, `
Examples:
  # Run every command in a file once, four at a time
  go-pan -n syscalls -a /tmp/zoo -f runtest/syscalls -S -x 4 -l syscalls.log -p

  # Hammer random picks for two hours, buffering output
  go-pan -n stress -a /tmp/zoo -f runtest/mm -x 8 -t 2h -O /tmp/out

`)
	}

	// Identity
	fs.StringVar(&cfg.Tag, "n", cfg.Tag, "Tag naming this scheduler in logs and the registry (required)")
	fs.StringVar(&cfg.ZooPath, "a", cfg.ZooPath, "Active-process registry file (default $ZOO)")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file applied before flags")

	// Work
	fs.StringVar(&cfg.CommandFile, "f", cfg.CommandFile, "Command file of \"tag command-line\" lines")
	fs.IntVar(&cfg.Starts, "s", cfg.Starts, "Total starts (0 = infinite; default one pass or one start)")
	fs.IntVar(&cfg.Concurrency, "x", cfg.Concurrency, "Tests to keep running at once")
	fs.Var(&cfg.RunTime, "t", "Run time N[s|m|h|d]; a bare number is minutes")
	fs.BoolVar(&cfg.Sequential, "S", cfg.Sequential, "Run commands in file order instead of at random")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for random command selection (0 = time-based)")
	fs.StringVar(&cfg.StopFile, "stop-file", cfg.StopFile, "File whose appearance stops an infinite run")

	// Output
	fs.StringVar(&cfg.CaptureDir, "O", cfg.CaptureDir, "Buffer each test's output in this directory")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "Result log file (\"-\" = stdout)")
	fs.BoolVar(&cfg.Formatted, "p", cfg.Formatted, "Formatted result log")
	fs.BoolVar(&cfg.Quiet, "q", cfg.Quiet, "Suppress test start/end markers")
	fs.StringVar(&cfg.ReportType, "r", cfg.ReportType, `Marker style: "rts" or "none"`)
	fs.StringVar(&cfg.OutputFile, "o", cfg.OutputFile, "Append test output to this file instead of stdout")
	fs.StringVar(&cfg.FailCmdFile, "C", cfg.FailCmdFile, "Append failed commands to this file")
	fs.StringVar(&cfg.SkipCmdFile, "T", cfg.SkipCmdFile, "Append skipped (TCONF) commands to this file")
	fs.BoolVar(&cfg.NoKmsg, "Q", cfg.NoKmsg, "Do not note test starts in /dev/kmsg")

	// Policy
	fs.BoolVar(&cfg.AllStop, "A", cfg.AllStop, "Stop everything on the first failure (implies -e)")
	fs.BoolVar(&cfg.ExitStatus, "e", cfg.ExitStatus, "Exit nonzero if any test fails")
	fs.BoolVar(&cfg.PauseResume, "y", cfg.PauseResume, "On interruption or failure drain, then resume")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn" or "error" (-v forces debug)`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	return fs
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "-1" {
			fmt.Fprintf(w, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(w)
	}
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	if _, ok := f.Value.(*RunTime); ok {
		return "time"
	}

	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	if strings.Contains(f.Usage, "file") || strings.Contains(f.Usage, "directory") {
		return "path"
	}
	return "string"
}
