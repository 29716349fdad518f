// Package report writes what the scheduler tells the outside world about each
// test: the result log, the rts start/end markers around test output, the
// fail and skip command files, and kernel log notes.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	// ResultFmt lays out the tag and result columns of the formatted log.
	ResultFmt = "%-50s %-10.10s"

	// TCONF is the exit code a test uses to say it does not apply here.
	TCONF = 32

	// ClockTicks converts CPU time to the tick counts the logs carry.
	ClockTicks = 100

	ReportRTS  = "rts"
	ReportNone = "none"

	// InitOK is the initiation status of a test that was executed.
	InitOK = "ok"
)

// Verdict is the formatted-log result column.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictFail
	VerdictConf
	// VerdictStopped marks a test the scheduler itself terminated.
	VerdictStopped
)

// String returns the result column text.
func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "PASS"
	case VerdictFail:
		return "FAIL"
	case VerdictConf:
		return "CONF"
	case VerdictStopped:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Test identifies one launch.
type Test struct {
	Tag     string
	CmdLine string
	Start   time.Time
}

// Result is the outcome of one launch, including launches that never started.
type Result struct {
	Test

	End time.Time

	// Status is exited, signaled, stopped or unknown.
	Status string

	// Termination is Status, or driver_interrupt when the scheduler had
	// already signaled the test.
	Termination string

	Code       int
	Core       bool
	UserTime   time.Duration
	SysTime    time.Duration
	InitStatus string
	Verdict    Verdict
}

// StartFailed reports whether the test never ran.
func (r Result) StartFailed() bool {
	return r.InitStatus != InitOK
}

// Duration is the wall-clock time the test ran.
func (r Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Config holds the destinations a Writer reports to. Nil writers are skipped.
type Config struct {
	// Log receives the result log.
	Log       io.Writer
	Formatted bool

	// Out receives rts markers and replayed test output.
	Out io.Writer

	FailCmds io.Writer
	SkipCmds io.Writer

	// Quiet suppresses rts markers and kernel log notes.
	Quiet      bool
	ReportType string

	// Kmsg receives "LTP: starting" notes.
	Kmsg io.Writer
}

// Writer emits reports. It is not safe for concurrent use.
type Writer struct {
	cfg Config
}

// New creates a Writer.
func New(cfg Config) *Writer {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.ReportType == "" {
		cfg.ReportType = ReportRTS
	}
	return &Writer{cfg: cfg}
}

// Header starts the result log.
func (w *Writer) Header(startup time.Time) error {
	if w.cfg.Log == nil {
		return nil
	}
	stamp := startup.Format(time.ANSIC)
	if !w.cfg.Formatted {
		_, err := fmt.Fprintf(w.cfg.Log, "startup='%s'\n", stamp)
		return err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "Test Start Time: %s\n", stamp)
	b.WriteString("-----------------------------------------\n")
	fmt.Fprintf(&b, ResultFmt+" %-10.10s\n", "Testcase", "Result", "Exit Value")
	fmt.Fprintf(&b, ResultFmt+" %-10.10s\n", "--------", "------", "------------")
	_, err := w.cfg.Log.Write(b.Bytes())
	return err
}

// Result writes the log line for r and, for nonzero codes, the re-drive line
// to the skip or fail command file.
func (w *Writer) Result(r Result) error {
	if w.cfg.Log != nil {
		var err error
		if w.cfg.Formatted {
			_, err = fmt.Fprintf(w.cfg.Log, ResultFmt+" %-5d\n", r.Tag, r.Verdict, r.Code)
		} else {
			_, err = fmt.Fprintf(w.cfg.Log,
				"tag=%s stime=%d dur=%d exit=%s stat=%d core=%s cu=%d cs=%d\n",
				r.Tag, r.Start.Unix(), int64(r.Duration()/time.Second), r.Status, r.Code,
				yesNo(r.Core), ticks(r.UserTime), ticks(r.SysTime))
		}
		if err != nil {
			return fmt.Errorf("write result log: %w", err)
		}
	}

	if r.Code == 0 {
		return nil
	}
	dst := w.cfg.FailCmds
	if r.Code == TCONF && w.cfg.SkipCmds != nil {
		dst = w.cfg.SkipCmds
	}
	if dst == nil {
		return nil
	}
	if _, err := fmt.Fprintf(dst, "%s %s\n", r.Tag, r.CmdLine); err != nil {
		return fmt.Errorf("write command file: %w", err)
	}
	return nil
}

// TestStart writes the start marker. With buffered output it runs at reap
// time, right before the replay.
func (w *Writer) TestStart(t Test) error {
	if w.cfg.Quiet || w.cfg.ReportType != ReportRTS {
		return nil
	}
	if _, err := fmt.Fprintf(w.cfg.Out,
		"<<<test_start>>>\ntag=%s stime=%d\ncmdline=\"%s\"\ncontacts=\"%s\"\nanalysis=%s\n<<<test_output>>>\n",
		t.Tag, t.Start.Unix(), t.CmdLine, "", "exit"); err != nil {
		return fmt.Errorf("write start marker: %w", err)
	}
	return nil
}

// Note writes the kernel log line announcing a launch.
func (w *Writer) Note(t Test) error {
	if w.cfg.Quiet || w.cfg.Kmsg == nil {
		return nil
	}

	note := fmt.Sprintf("LTP: starting %s\n", t.Tag)
	if t.Tag != t.CmdLine {
		note = fmt.Sprintf("LTP: starting %s (%s)\n", t.Tag, t.CmdLine)
	}
	if _, err := io.WriteString(w.cfg.Kmsg, note); err != nil {
		return fmt.Errorf("write kmsg: %w", err)
	}
	return nil
}

// TestEnd writes the execution status and end marker.
func (w *Writer) TestEnd(r Result) error {
	if w.cfg.Quiet || w.cfg.ReportType != ReportRTS {
		return nil
	}
	_, err := fmt.Fprintf(w.cfg.Out,
		"<<<execution_status>>>\ninitiation_status=\"%s\"\nduration=%d termination_type=%s termination_id=%d corefile=%s\ncutime=%d cstime=%d\n<<<test_end>>>\n",
		r.InitStatus, int64(r.Duration()/time.Second), r.Termination, r.Code,
		yesNo(r.Core), ticks(r.UserTime), ticks(r.SysTime))
	if err != nil {
		return fmt.Errorf("write end marker: %w", err)
	}
	return nil
}

// Replay copies captured test output to Out, ending it with a newline.
func (w *Writer) Replay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if _, err := w.cfg.Out.Write(data); err != nil {
		return fmt.Errorf("replay capture: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func ticks(d time.Duration) int64 {
	return int64(d) * ClockTicks / int64(time.Second)
}
