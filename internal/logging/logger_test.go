package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", 0, true},
	}
	for _, tc := range testCases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Options{Format: "json", Output: &buf})
		if err != nil {
			t.Fatal(err)
		}
		logger.Info("worker_started", "tag", "fork01", "pid", 1000)

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("output is not JSON: %q", buf.String())
		}
		if entry["msg"] != "worker_started" || entry["tag"] != "fork01" {
			t.Errorf("entry = %v", entry)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Options{Format: "text", Output: &buf})
		if err != nil {
			t.Fatal(err)
		}
		logger.Info("worker_reaped", "tag", "fork01")
		if !strings.Contains(buf.String(), "msg=worker_reaped") || !strings.Contains(buf.String(), "tag=fork01") {
			t.Errorf("text output = %q", buf.String())
		}
	})
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "text", Level: "warn", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("worker_started")
	logger.Warn("orphan_detected")

	out := buf.String()
	if strings.Contains(out, "worker_started") {
		t.Errorf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, "orphan_detected") {
		t.Errorf("warning missing: %q", out)
	}
}

func TestNew_VerboseForcesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "text", Level: "error", Verbose: true, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug("admission_step")

	out := buf.String()
	if !strings.Contains(out, "admission_step") {
		t.Fatalf("debug line missing with -v: %q", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("verbose output should carry source locations: %q", out)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("New() with unknown level should fail")
	}
}
