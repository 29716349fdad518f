package supervisor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/randomizedcoder/go-pan/internal/collection"
	"github.com/randomizedcoder/go-pan/internal/process"
	"github.com/randomizedcoder/go-pan/internal/report"
)

// Launch starts e in the first free slot and registers it. A *StartError
// means the command could not be executed and has been reported as a failed
// test; any other error is an admission failure that left no trace.
func (s *Supervisor) Launch(e collection.Entry) (int, error) {
	idx := s.slots.Free()
	if idx < 0 {
		return 0, ErrNoFreeSlot
	}

	slot := Slot{Entry: e, CmdLine: e.CmdLine}

	out := s.stdout
	if s.captureDir != "" {
		f, err := s.createCapture(e.Tag)
		if err != nil {
			s.logger.Warn("capture_create_failed", "tag", e.Tag, "error", err)
			return 0, err
		}
		// The child holds its own descriptor once started.
		defer f.Close()
		out = f
		slot.Capture = f.Name()
	}

	if e.HasSubstitution {
		s.substitutes++
		slot.CmdLine = e.Expand(strconv.Itoa(s.pid) + "_" + strconv.Itoa(s.substitutes))
	}

	slot.Start = s.now()
	test := report.Test{Tag: e.Tag, CmdLine: e.CmdLine, Start: slot.Start}
	if err := s.rep.Note(test); err != nil {
		s.logger.Debug("kmsg_note_failed", "tag", e.Tag, "error", err)
	}
	if slot.Capture == "" {
		s.reportStart(test)
	}

	pid, err := s.ctl.Start(process.StartRequest{CmdLine: slot.CmdLine, Output: out})
	if err != nil {
		s.startFailed(slot, err)
		return 0, &StartError{Tag: e.Tag, Err: err}
	}

	slot.PGID = pid
	s.slots.occupy(idx, slot)

	if err := s.reg.Register(pid, e.Tag, e.CmdLine); err != nil {
		s.logger.Warn("registry_register_failed", "tag", e.Tag, "pid", pid, "error", err)
	}

	s.logger.Info("worker_started",
		"tag", e.Tag,
		"pid", pid,
		"slot", idx,
		"capture", slot.Capture,
	)
	if s.callbacks.OnStart != nil {
		s.callbacks.OnStart(e.Tag, pid)
	}
	return pid, nil
}

// createCapture exclusively creates <dir>/<tag>.<seq>, skipping names that
// already exist.
func (s *Supervisor) createCapture(tag string) (*os.File, error) {
	for {
		path := filepath.Join(s.captureDir, tag+"."+strconv.FormatInt(s.captureSeq, 10))
		s.captureSeq++

		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL|os.O_SYNC, 0o666)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create capture file: %w", err)
		}
	}
}

// startFailed reports a launch whose command never ran and removes its capture file.
func (s *Supervisor) startFailed(slot Slot, err error) {
	code := process.StartErrorCode(err)
	verdict := report.VerdictPass
	if code != 0 {
		verdict = report.VerdictFail
	}

	res := report.Result{
		Test:        report.Test{Tag: slot.Entry.Tag, CmdLine: slot.Entry.CmdLine, Start: slot.Start},
		End:         s.now(),
		Status:      process.OutcomeExited.String(),
		Termination: process.OutcomeExited.String(),
		Code:        code,
		InitStatus:  err.Error(),
		Verdict:     verdict,
	}

	s.logger.Warn("worker_start_failed",
		"tag", slot.Entry.Tag,
		"cmdline", slot.CmdLine,
		"code", code,
		"error", err,
	)
	s.reportResult(res)
	s.reportEnd(res)

	if slot.Capture != "" {
		if rerr := os.Remove(slot.Capture); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			s.logger.Warn("capture_remove_failed", "path", slot.Capture, "error", rerr)
		}
	}
	if s.callbacks.OnResult != nil {
		s.callbacks.OnResult(res)
	}
}

func (s *Supervisor) reportStart(t report.Test) {
	if err := s.rep.TestStart(t); err != nil {
		s.logger.Warn("report_failed", "tag", t.Tag, "error", err)
	}
}

func (s *Supervisor) reportResult(r report.Result) {
	if err := s.rep.Result(r); err != nil {
		s.logger.Warn("report_failed", "tag", r.Tag, "error", err)
	}
}

func (s *Supervisor) reportEnd(r report.Result) {
	if err := s.rep.TestEnd(r); err != nil {
		s.logger.Warn("report_failed", "tag", r.Tag, "error", err)
	}
}
