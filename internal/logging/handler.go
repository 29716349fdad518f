package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of lines to buffer per test.
	MaxBufferedLines = 100
)

// ResultKeywords are the result tags LTP tests print, strongest first.
var ResultKeywords = []string{"TBROK", "TFAIL", "TWARN", "TCONF", "TPASS", "TINFO"}

// OutputHandler scans a test's output. It keeps the most recent lines,
// counts result keywords, and logs broken or failing lines.
type OutputHandler struct {
	tag     string
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	counts map[string]int

	// failing holds the latest TBROK and TFAIL lines.
	failing []string
	mu      sync.Mutex
}

// NewOutputHandler creates a new output handler for a test.
func NewOutputHandler(tag string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		tag:     tag,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
		counts:  make(map[string]int),
	}
}

// HandleReader reads from an io.Reader and processes each line.
func (h *OutputHandler) HandleReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
	return scanner.Err()
}

// HandleLine processes a single line of test output.
func (h *OutputHandler) HandleLine(line string) {
	// Truncate if too long
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	keyword := resultKeyword(line)

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	if keyword != "" {
		h.counts[keyword]++
	}
	if keyword == "TBROK" || keyword == "TFAIL" {
		if len(h.failing) == MaxBufferedLines {
			h.failing = h.failing[1:]
		}
		h.failing = append(h.failing, line)
	}
	h.mu.Unlock()

	h.logLine(line, keyword)
}

// logLine logs the line at appropriate level based on content.
func (h *OutputHandler) logLine(line, keyword string) {
	level := classifyKeyword(keyword)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level < slog.LevelWarn {
		return
	}

	h.logger.Log(context.Background(), level, "test_output",
		"tag", h.tag,
		"line", line,
	)
}

// resultKeyword returns the strongest result keyword in line, or "".
func resultKeyword(line string) string {
	for _, kw := range ResultKeywords {
		if strings.Contains(line, kw) {
			return kw
		}
	}
	return ""
}

// classifyKeyword determines the log level for a result keyword.
func classifyKeyword(keyword string) slog.Level {
	switch keyword {
	case "TBROK", "TFAIL":
		return slog.LevelWarn
	case "TWARN", "TCONF":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// RecentLines returns the most recent lines from the buffer.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// FailingLines returns up to n of the most recent TBROK and TFAIL lines.
func (h *OutputHandler) FailingLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > len(h.failing) {
		n = len(h.failing)
	}
	return append([]string(nil), h.failing[len(h.failing)-n:]...)
}

// Counts returns how many lines carried each result keyword.
func (h *OutputHandler) Counts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]int, len(h.counts))
	for k, v := range h.counts {
		out[k] = v
	}
	return out
}
