package logging

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// debugLogger writes every level as text to w.
func debugLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewOutputHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)

	h := NewOutputHandler("fork01", logger, false)
	if h == nil {
		t.Fatal("NewOutputHandler returned nil")
	}
	if h.tag != "fork01" {
		t.Errorf("tag = %q, want %q", h.tag, "fork01")
	}
	if len(h.buffer) != MaxBufferedLines {
		t.Errorf("buffer size = %d, want %d", len(h.buffer), MaxBufferedLines)
	}
}

func TestOutputHandler_HandleLine_Truncation(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("long", logger, true)

	h.HandleLine(strings.Repeat("x", MaxLineLength+100))

	lines := h.RecentLines(1)
	if len(lines) != 1 {
		t.Fatalf("RecentLines(1) returned %d lines", len(lines))
	}
	if !strings.HasSuffix(lines[0], "...(truncated)") {
		t.Error("long line was not truncated")
	}
	if len(lines[0]) != MaxLineLength+len("...(truncated)") {
		t.Errorf("truncated length = %d", len(lines[0]))
	}
}

func TestOutputHandler_CircularBuffer(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("wrap", logger, false)

	for i := 0; i < MaxBufferedLines+10; i++ {
		h.HandleLine(fmt.Sprintf("line %d", i))
	}

	lines := h.RecentLines(MaxBufferedLines)
	if len(lines) != MaxBufferedLines {
		t.Fatalf("got %d lines, want %d", len(lines), MaxBufferedLines)
	}
	if lines[0] != "line 10" {
		t.Errorf("oldest line = %q, want %q", lines[0], "line 10")
	}
	if last := lines[len(lines)-1]; last != fmt.Sprintf("line %d", MaxBufferedLines+9) {
		t.Errorf("newest line = %q", last)
	}
}

func TestOutputHandler_RecentLines(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("recent", logger, false)

	h.HandleLine("a")
	h.HandleLine("b")
	h.HandleLine("c")

	testCases := []struct {
		n    int
		want []string
	}{
		{1, []string{"c"}},
		{2, []string{"b", "c"}},
		{3, []string{"a", "b", "c"}},
		{10, []string{"a", "b", "c"}},
	}
	for _, tc := range testCases {
		got := h.RecentLines(tc.n)
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Errorf("RecentLines(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestOutputHandler_RecentLines_Empty(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("empty", logger, false)

	if lines := h.RecentLines(10); len(lines) != 0 {
		t.Errorf("expected no lines, got %v", lines)
	}
}

func TestResultKeyword(t *testing.T) {
	testCases := []struct {
		line string
		want string
	}{
		{"fork01.c:42: TPASS: fork() returned 1234", "TPASS"},
		{"fork01.c:50: TFAIL: child exited with 1", "TFAIL"},
		{"tst_test.c:1200: TBROK: Test killed by SIGSEGV!", "TBROK"},
		{"tst_kconfig.c:87: TCONF: CONFIG_FOO not set", "TCONF"},
		{"tst_test.c:900: TWARN: cleanup failed", "TWARN"},
		{"tst_test.c:1500: TINFO: Timeout per run is 0h 05m", "TINFO"},
		{"TINFO then TBROK on one line", "TBROK"},
		{"Summary:", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := resultKeyword(tc.line); got != tc.want {
			t.Errorf("resultKeyword(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestClassifyKeyword(t *testing.T) {
	testCases := []struct {
		keyword string
		want    slog.Level
	}{
		{"TBROK", slog.LevelWarn},
		{"TFAIL", slog.LevelWarn},
		{"TWARN", slog.LevelInfo},
		{"TCONF", slog.LevelInfo},
		{"TPASS", slog.LevelDebug},
		{"TINFO", slog.LevelDebug},
		{"", slog.LevelDebug},
	}
	for _, tc := range testCases {
		if got := classifyKeyword(tc.keyword); got != tc.want {
			t.Errorf("classifyKeyword(%q) = %v, want %v", tc.keyword, got, tc.want)
		}
	}
}

func TestOutputHandler_Counts(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("count", logger, false)

	h.HandleLine("a.c:1: TPASS: ok")
	h.HandleLine("a.c:2: TPASS: ok")
	h.HandleLine("a.c:3: TFAIL: bad")
	h.HandleLine("plain output")
	h.HandleLine("a.c:4: TBROK: broken")

	counts := h.Counts()
	if counts["TPASS"] != 2 {
		t.Errorf("TPASS = %d, want 2", counts["TPASS"])
	}
	if counts["TFAIL"] != 1 {
		t.Errorf("TFAIL = %d, want 1", counts["TFAIL"])
	}
	if counts["TBROK"] != 1 {
		t.Errorf("TBROK = %d, want 1", counts["TBROK"])
	}
	if len(counts) != 3 {
		t.Errorf("counts = %v, want 3 keywords", counts)
	}

	// The returned map is a copy.
	counts["TPASS"] = 99
	if h.Counts()["TPASS"] != 2 {
		t.Error("Counts exposed internal state")
	}
}

func TestOutputHandler_VerboseLogging(t *testing.T) {
	t.Run("verbose_true", func(t *testing.T) {
		var buf bytes.Buffer
		logger := debugLogger(&buf)
		h := NewOutputHandler("v", logger, true)

		h.HandleLine("TINFO: detail")

		if !strings.Contains(buf.String(), "TINFO: detail") {
			t.Error("verbose mode should log info lines")
		}
	})

	t.Run("verbose_false", func(t *testing.T) {
		var buf bytes.Buffer
		logger := debugLogger(&buf)
		h := NewOutputHandler("v", logger, false)

		h.HandleLine("TINFO: detail")
		h.HandleLine("TCONF: skipped")

		if buf.Len() != 0 {
			t.Errorf("non-verbose mode logged %q", buf.String())
		}
	})

	t.Run("verbose_false_logs_failures", func(t *testing.T) {
		var buf bytes.Buffer
		logger := debugLogger(&buf)
		h := NewOutputHandler("v", logger, false)

		h.HandleLine("TFAIL: something failed")

		out := buf.String()
		if !strings.Contains(out, "TFAIL: something failed") {
			t.Error("non-verbose mode should still log failures")
		}
		if !strings.Contains(out, "tag=v") {
			t.Errorf("failure line missing tag: %q", out)
		}
	})
}

func TestOutputHandler_HandleReader(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("reader", logger, true)

	if err := h.HandleReader(strings.NewReader("line1\nline2\nline3")); err != nil {
		t.Fatalf("HandleReader: %v", err)
	}

	lines := h.RecentLines(3)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[2] != "line3" {
		t.Errorf("last line = %q, want line3", lines[2])
	}
}

func TestOutputHandler_HandleReader_EmptyInput(t *testing.T) {
	var buf bytes.Buffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("reader", logger, true)

	if err := h.HandleReader(strings.NewReader("")); err != nil {
		t.Fatalf("HandleReader: %v", err)
	}
	if lines := h.RecentLines(10); len(lines) != 0 {
		t.Errorf("expected 0 lines for empty input, got %d", len(lines))
	}
}

func TestOutputHandler_Concurrent(t *testing.T) {
	var buf syncBuffer
	logger := debugLogger(&buf)
	h := NewOutputHandler("conc", logger, false)

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			h.HandleLine("TFAIL: concurrent line")
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_ = h.RecentLines(10)
			_ = h.Counts()
		}
		done <- true
	}()

	<-done
	<-done

	if got := h.Counts()["TFAIL"]; got != 100 {
		t.Errorf("TFAIL = %d, want 100", got)
	}
}

func TestOutputHandler_FailingLines(t *testing.T) {
	var buf bytes.Buffer
	h := NewOutputHandler("fail", debugLogger(&buf), false)

	h.HandleLine("a.c:1: TINFO: start")
	h.HandleLine("a.c:2: TFAIL: first")
	h.HandleLine("a.c:3: TPASS: ok")
	h.HandleLine("a.c:4: TBROK: second")
	h.HandleLine("a.c:5: TINFO: cleanup")

	testCases := []struct {
		n    int
		want []string
	}{
		{0, []string{}},
		{1, []string{"a.c:4: TBROK: second"}},
		{5, []string{"a.c:2: TFAIL: first", "a.c:4: TBROK: second"}},
	}
	for _, tc := range testCases {
		got := h.FailingLines(tc.n)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Errorf("FailingLines(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestOutputHandler_FailingLinesBounded(t *testing.T) {
	var buf bytes.Buffer
	h := NewOutputHandler("many", debugLogger(&buf), false)

	for i := 0; i < MaxBufferedLines+5; i++ {
		h.HandleLine(fmt.Sprintf("TFAIL: %d", i))
	}

	got := h.FailingLines(MaxBufferedLines + 5)
	if len(got) != MaxBufferedLines {
		t.Fatalf("kept %d failing lines, want %d", len(got), MaxBufferedLines)
	}
	if got[0] != "TFAIL: 5" {
		t.Errorf("oldest failing line = %q, want %q", got[0], "TFAIL: 5")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
