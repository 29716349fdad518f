package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/randomizedcoder/go-pan/internal/config"
	"github.com/randomizedcoder/go-pan/internal/report"
)

func TestOpenOutputs_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()

	out, err := openOutputs(cfg)
	if err != nil {
		t.Fatalf("openOutputs() error = %v", err)
	}
	defer out.Close()

	if out.log != nil {
		t.Errorf("log = %v, want nil without -l", out.log)
	}
	if out.stdout != os.Stdout {
		t.Error("stdout should default to os.Stdout")
	}
	if out.failCmds != nil || out.skipCmds != nil {
		t.Error("command files should be nil when not configured")
	}
	if len(out.files) != 0 {
		t.Errorf("opened %d files, want 0", len(out.files))
	}
}

func TestOpenOutputs_LogToStdout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogFile = "-"

	out, err := openOutputs(cfg)
	if err != nil {
		t.Fatalf("openOutputs() error = %v", err)
	}
	defer out.Close()

	if out.log != os.Stdout {
		t.Error(`log "-" should write to os.Stdout`)
	}
}

func TestOpenOutputs_AppendsToFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(dir, "results")
	cfg.OutputFile = filepath.Join(dir, "output")
	cfg.FailCmdFile = filepath.Join(dir, "failed")
	cfg.SkipCmdFile = filepath.Join(dir, "skipped")

	if err := os.WriteFile(cfg.FailCmdFile, []byte("earlier\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := openOutputs(cfg)
	if err != nil {
		t.Fatalf("openOutputs() error = %v", err)
	}
	if len(out.files) != 4 {
		t.Fatalf("opened %d files, want 4", len(out.files))
	}
	if _, err := out.failCmds.Write([]byte("later\n")); err != nil {
		t.Fatal(err)
	}
	out.Close()

	data, err := os.ReadFile(cfg.FailCmdFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "earlier\nlater\n" {
		t.Errorf("fail file = %q, want appended content", data)
	}
	if out.files != nil {
		t.Error("Close should forget closed files")
	}
}

func TestOpenOutputs_Error(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LogFile = filepath.Join(dir, "results")
	cfg.OutputFile = filepath.Join(dir, "missing", "output")

	out, err := openOutputs(cfg)
	if err == nil {
		out.Close()
		t.Fatal("openOutputs() should fail for a missing directory")
	}
	if out != nil {
		t.Error("openOutputs() should return nil outputs on error")
	}
}

func TestKmsgWriter(t *testing.T) {
	tests := []struct {
		name   string
		noKmsg bool
		quiet  bool
		want   bool
	}{
		{name: "enabled", want: true},
		{name: "disabled", noKmsg: true},
		{name: "quiet", quiet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.NoKmsg = tt.noKmsg
			cfg.Quiet = tt.quiet

			w := kmsgWriter(cfg)
			if (w != nil) != tt.want {
				t.Errorf("kmsgWriter() = %v, want writer: %v", w, tt.want)
			}
			if tt.want {
				if _, ok := w.(report.Kmsg); !ok {
					t.Errorf("kmsgWriter() = %T, want report.Kmsg", w)
				}
			}
		})
	}
}
