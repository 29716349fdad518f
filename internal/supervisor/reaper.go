package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-pan/internal/logging"
	"github.com/randomizedcoder/go-pan/internal/process"
	"github.com/randomizedcoder/go-pan/internal/report"
	"github.com/randomizedcoder/go-pan/internal/zoo"
)

// TerminationDriverInterrupt is the termination type of a worker the
// scheduler had already signaled.
const TerminationDriverInterrupt = "driver_interrupt"

// interruptedExit is the status a shell reports when SIGINT killed the
// command it was running.
const interruptedExit = 128 + int(syscall.SIGINT)

// failedOutputTail is how many failing capture lines a failure log carries.
const failedOutputTail = 5

// Reaped describes what Reap did with one exit.
type Reaped struct {
	// Found is false when the exit belonged to no slot.
	Found  bool
	Tag    string
	Result report.Result

	// Failed reports whether the exit counts as a scheduling failure.
	Failed bool

	// Orphaned is set when the worker's group outlived it.
	Orphaned bool
}

// Reap classifies one exit, reports it, clears the worker's registry record,
// hands a surviving process group to the orphan tracker and frees the slot.
func (s *Supervisor) Reap(ex process.Exit) Reaped {
	idx := s.slots.Find(ex.PID)
	if idx < 0 {
		s.logger.Debug("untracked_exit", "pid", ex.PID, "outcome", ex.Outcome.String())
		return Reaped{}
	}
	slot := *s.slots.At(idx)

	code := ex.Code
	failed := false
	switch ex.Outcome {
	case process.OutcomeExited:
		failed = code != 0 && code != report.TCONF
		if slot.Stopping && selfInflicted(code, slot.Signal) {
			s.logger.Debug("stop_exit_forgiven", "tag", slot.Entry.Tag, "code", code)
			code = 0
			failed = false
		}
	case process.OutcomeSignaled:
		failed = !slot.Stopping
	default:
		failed = true
	}

	verdict := report.VerdictPass
	switch {
	case ex.Outcome == process.OutcomeExited && code == report.TCONF:
		verdict = report.VerdictConf
	case failed:
		verdict = report.VerdictFail
	case code != 0:
		verdict = report.VerdictStopped
	}

	end := ex.EndTime
	if end.IsZero() {
		end = s.now()
	}
	status := ex.Outcome.String()
	termination := status
	if slot.Stopping {
		termination = TerminationDriverInterrupt
	}

	res := report.Result{
		Test:        report.Test{Tag: slot.Entry.Tag, CmdLine: slot.Entry.CmdLine, Start: slot.Start},
		End:         end,
		Status:      status,
		Termination: termination,
		Code:        code,
		Core:        ex.Core,
		UserTime:    ex.UserTime,
		SysTime:     ex.SysTime,
		InitStatus:  report.InitOK,
		Verdict:     verdict,
	}

	s.reportResult(res)
	if slot.Capture != "" {
		if failed {
			s.scanOutput(slot.Entry.Tag, slot.Capture)
		}
		s.reportStart(res.Test)
		if err := s.rep.Replay(slot.Capture); err != nil {
			s.logger.Warn("report_failed", "tag", slot.Entry.Tag, "error", err)
		}
		if err := os.Remove(slot.Capture); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("capture_remove_failed", "path", slot.Capture, "error", err)
		}
	}
	s.reportEnd(res)

	s.logger.Info("worker_reaped",
		"tag", slot.Entry.Tag,
		"pid", ex.PID,
		"outcome", status,
		"code", code,
		"failed", failed,
		"duration", res.Duration().Round(time.Millisecond).String(),
	)

	orphaned := s.ctl.Alive(slot.PGID)
	if orphaned {
		s.adoptOrphan(slot)
	} else if err := s.reg.Tombstone(slot.PGID); err != nil {
		s.logger.Warn("registry_tombstone_failed", "pid", slot.PGID, "error", err)
	}

	s.slots.release(idx)

	if s.callbacks.OnResult != nil {
		s.callbacks.OnResult(res)
	}
	return Reaped{
		Found:    true,
		Tag:      slot.Entry.Tag,
		Result:   res,
		Failed:   failed,
		Orphaned: orphaned,
	}
}

// adoptOrphan re-registers a surviving group under the orphan tag, which
// replaces the worker's record, tracks it, and asks it to terminate.
func (s *Supervisor) adoptOrphan(slot Slot) {
	if err := s.reg.Register(slot.PGID, zoo.OrphanTag, slot.Entry.CmdLine); err != nil {
		s.logger.Warn("registry_register_failed", "pid", slot.PGID, "tag", zoo.OrphanTag, "error", err)
	}
	s.orphans.Add(slot.PGID)

	s.logger.Warn("orphan_detected", "tag", slot.Entry.Tag, "pgid", slot.PGID)
	if err := s.ctl.Signal(slot.PGID, syscall.SIGTERM); err != nil {
		s.logger.Debug("orphan_signal_failed", "pgid", slot.PGID, "error", err)
	}
	if s.callbacks.OnOrphan != nil {
		s.callbacks.OnOrphan(slot.PGID)
	}
}

// scanOutput logs the broken and failing lines of a failed test's capture.
func (s *Supervisor) scanOutput(tag, path string) {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Debug("capture_open_failed", "path", path, "error", err)
		return
	}
	defer f.Close()

	h := logging.NewOutputHandler(tag, s.logger, s.logger.Enabled(context.Background(), slog.LevelDebug))
	if err := h.HandleReader(f); err != nil {
		s.logger.Debug("capture_scan_failed", "path", path, "error", err)
	}
	counts := h.Counts()
	s.logger.Warn("failed_test_output",
		"tag", tag,
		"tfail", counts["TFAIL"],
		"tbrok", counts["TBROK"],
		"failing", h.FailingLines(failedOutputTail),
	)
}

// selfInflicted reports whether an exit code is what a shell returns when
// the signal the scheduler sent killed its command.
func selfInflicted(code int, sent syscall.Signal) bool {
	if code == interruptedExit {
		return true
	}
	return sent != 0 && code == 128+int(sent)
}
