package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("ZOO", "/tmp/zoo.active")
	cfg := DefaultConfig()

	if cfg.ZooPath != "/tmp/zoo.active" {
		t.Errorf("ZooPath = %q, want $ZOO", cfg.ZooPath)
	}
	if cfg.Starts != StartsUnset {
		t.Errorf("Starts = %d, want StartsUnset", cfg.Starts)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Concurrency)
	}
	if cfg.StopFile != "PAN_STOP_FILE" {
		t.Errorf("StopFile = %q", cfg.StopFile)
	}
	if cfg.ReportType != "rts" || cfg.LogFormat != "text" || cfg.LogLevel != "info" {
		t.Errorf("ReportType=%q LogFormat=%q LogLevel=%q", cfg.ReportType, cfg.LogFormat, cfg.LogLevel)
	}
}

func TestParseRunTime(t *testing.T) {
	testCases := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"5", 5 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"0s", 0, false},
		{"", 0, true},
		{"h", 0, true},
		{"5x", 0, true},
		{"-3s", 0, true},
		{"1.5h", 0, true},
		{"106751d", 106751 * 24 * time.Hour, false},
		{"106752d", 0, true},
		{"9223372036854775807s", 0, true},
		{"99999999999999999999", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRunTime(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseRunTime(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if time.Duration(got) != tc.want {
				t.Errorf("ParseRunTime(%q) = %v, want %v", tc.input, time.Duration(got), tc.want)
			}
		})
	}
}

func TestResolveStarts(t *testing.T) {
	testCases := []struct {
		name        string
		starts      int
		runTime     RunTime
		sequential  bool
		concurrency int
		n           int
		want        int
	}{
		{"timed without count is infinite", StartsUnset, RunTime(time.Minute), false, 1, 5, Infinite},
		{"sequential default is one pass", StartsUnset, 0, true, 1, 5, 5},
		{"random default is one start", StartsUnset, 0, false, 1, 5, 1},
		{"explicit zero is infinite", 0, 0, false, 1, 5, Infinite},
		{"small count raised to concurrency", 2, 0, false, 4, 5, 4},
		{"explicit count kept", 10, 0, true, 4, 5, 10},
		{"explicit count with run time kept", 3, RunTime(time.Minute), false, 1, 5, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Starts: tc.starts, RunTime: tc.runTime, Sequential: tc.sequential, Concurrency: tc.concurrency}
			if got := cfg.ResolveStarts(tc.n); got != tc.want {
				t.Errorf("ResolveStarts(%d) = %d, want %d", tc.n, got, tc.want)
			}
		})
	}
}

func TestEffectiveCaptureDir(t *testing.T) {
	cfg := &Config{CaptureDir: "/tmp/out", Concurrency: 1}
	if got := cfg.EffectiveCaptureDir(); got != "" {
		t.Errorf("capture with concurrency 1 = %q, want disabled", got)
	}
	cfg.Concurrency = 2
	if got := cfg.EffectiveCaptureDir(); got != "/tmp/out" {
		t.Errorf("capture = %q, want /tmp/out", got)
	}
}

func TestParseFlags(t *testing.T) {
	t.Setenv("ZOO", "")
	args := []string{
		"-n", "ltp", "-a", "/tmp/zoo", "-f", "runtest/syscalls",
		"-s", "0", "-x", "4", "-t", "90s", "-S",
		"-O", "/tmp/out", "-l", "run.log", "-p", "-q", "-C", "fail.cmds", "-T", "skip.cmds", "-Q",
		"-A", "-y", "-v", "-log-format", "json", "-log-level", "warn",
		"echo", "hello",
	}
	cfg, err := ParseFlags(args, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if cfg.Tag != "ltp" || cfg.ZooPath != "/tmp/zoo" || cfg.CommandFile != "runtest/syscalls" {
		t.Errorf("identity = %q %q %q", cfg.Tag, cfg.ZooPath, cfg.CommandFile)
	}
	if cfg.Starts != 0 || cfg.Concurrency != 4 || cfg.RunDuration() != 90*time.Second || !cfg.Sequential {
		t.Errorf("work = starts %d concurrency %d run %v sequential %v",
			cfg.Starts, cfg.Concurrency, cfg.RunDuration(), cfg.Sequential)
	}
	if cfg.CaptureDir != "/tmp/out" || cfg.LogFile != "run.log" || !cfg.Formatted || !cfg.Quiet || !cfg.NoKmsg {
		t.Errorf("output flags not applied: %+v", cfg)
	}
	if cfg.FailCmdFile != "fail.cmds" || cfg.SkipCmdFile != "skip.cmds" {
		t.Errorf("command files = %q %q", cfg.FailCmdFile, cfg.SkipCmdFile)
	}
	if !cfg.AllStop || !cfg.ExitStatus || !cfg.PauseResume {
		t.Errorf("-A must imply -e: AllStop=%v ExitStatus=%v PauseResume=%v", cfg.AllStop, cfg.ExitStatus, cfg.PauseResume)
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != "warn" {
		t.Errorf("logging = %q %q", cfg.LogFormat, cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.Command, []string{"echo", "hello"}) {
		t.Errorf("Command = %v", cfg.Command)
	}
}

func TestParseFlags_BadRunTime(t *testing.T) {
	if _, err := ParseFlags([]string{"-n", "x", "-t", "10y"}, io.Discard); err == nil {
		t.Error("expected error for bad run time modifier")
	}
}

func TestParseFlags_Help(t *testing.T) {
	var usage strings.Builder
	_, err := ParseFlags([]string{"-h"}, &usage)
	if !errors.Is(err, ErrHelp) {
		t.Fatalf("err = %v, want ErrHelp", err)
	}
	for _, want := range []string{"Identity:", "-n", "Policy:", "-A"} {
		if !strings.Contains(usage.String(), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestParseFlags_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pan.yaml")
	content := `tag: nightly
zoo: /var/run/zoo
command_file: runtest/fs
concurrency: 3
run_time: 2h
all_stop: true
log_format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := ParseFlags([]string{"-config", path, "-x", "6"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Tag != "nightly" || cfg.ZooPath != "/var/run/zoo" || cfg.CommandFile != "runtest/fs" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Concurrency != 6 {
		t.Errorf("Concurrency = %d, flag should override the file", cfg.Concurrency)
	}
	if cfg.RunDuration() != 2*time.Hour {
		t.Errorf("RunDuration = %v, want 2h", cfg.RunDuration())
	}
	if !cfg.AllStop || !cfg.ExitStatus || cfg.LogFormat != "json" {
		t.Errorf("policy from file: AllStop=%v ExitStatus=%v LogFormat=%q", cfg.AllStop, cfg.ExitStatus, cfg.LogFormat)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if err := LoadFile(filepath.Join(dir, "missing.yaml"), DefaultConfig()); err == nil {
		t.Error("expected error for missing file")
	}

	unknown := filepath.Join(dir, "unknown.yaml")
	os.WriteFile(unknown, []byte("clients: 5\n"), 0o644)
	if err := LoadFile(unknown, DefaultConfig()); err == nil {
		t.Error("expected error for unknown key")
	}

	badTime := filepath.Join(dir, "badtime.yaml")
	os.WriteFile(badTime, []byte("run_time: soon\n"), 0o644)
	if err := LoadFile(badTime, DefaultConfig()); err == nil {
		t.Error("expected error for bad run_time")
	}

	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, nil, 0o644)
	if err := LoadFile(empty, DefaultConfig()); err != nil {
		t.Errorf("empty file: %v", err)
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tag = "ltp"
	cfg.ZooPath = "/tmp/zoo"
	cfg.CommandFile = "runtest/syscalls"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"missing tag", func(c *Config) { c.Tag = "" }, "tag"},
		{"missing zoo", func(c *Config) { c.ZooPath = "" }, "zoo"},
		{"no commands", func(c *Config) { c.CommandFile = "" }, "command_file"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"negative starts", func(c *Config) { c.Starts = -5 }, "starts"},
		{"negative run time", func(c *Config) { c.RunTime = RunTime(-time.Second) }, "run_time"},
		{"bad report type", func(c *Config) { c.ReportType = "xml" }, "report_type"},
		{"bad log format", func(c *Config) { c.LogFormat = "yaml" }, "log_format"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"tui without output file", func(c *Config) { c.TUIEnabled = true }, "tui"},
		{"tui with log on stdout", func(c *Config) { c.TUIEnabled = true; c.OutputFile = "out"; c.LogFile = "-" }, "tui"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.modify(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var ve ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("Validate() = %v, want field %q", err, tc.field)
			}
		})
	}
}

func TestValidate_CommandOnly(t *testing.T) {
	cfg := validConfig()
	cfg.CommandFile = ""
	cfg.Command = []string{"true"}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ZooPath = ""
	cfg.Concurrency = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, field := range []string{"tag", "zoo", "command_file", "concurrency"} {
		if !strings.Contains(err.Error(), field+":") {
			t.Errorf("combined error missing %q: %v", field, err)
		}
	}
}

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{Field: "tag", Message: "must supply -n"}
	if got := err.Error(); got != "tag: must supply -n" {
		t.Errorf("Error() = %q", got)
	}
}

func TestFlagType(t *testing.T) {
	fs := newFlagSet(DefaultConfig(), io.Discard)
	testCases := []struct {
		name string
		want string
	}{
		{"t", "time"},
		{"x", "int"},
		{"S", ""},
		{"f", "path"},
		{"log-format", "string"},
		{"log-level", "string"},
	}
	for _, tc := range testCases {
		if got := flagType(fs.Lookup(tc.name)); got != tc.want {
			t.Errorf("flagType(-%s) = %q, want %q", tc.name, got, tc.want)
		}
	}
}
