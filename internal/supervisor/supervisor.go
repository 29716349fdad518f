package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-pan/internal/process"
	"github.com/randomizedcoder/go-pan/internal/report"
	"github.com/randomizedcoder/go-pan/internal/zoo"
)

// ErrNoFreeSlot is returned by Launch when every slot is occupied.
var ErrNoFreeSlot = errors.New("no free slot")

// StartError reports a command that could not be executed. The launch has
// already been reported as a completed, failed test.
type StartError struct {
	Tag string
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Tag, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Reporter receives per-test output. *report.Writer implements it.
type Reporter interface {
	Result(r report.Result) error
	Note(t report.Test) error
	TestStart(t report.Test) error
	TestEnd(r report.Result) error
	Replay(path string) error
}

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStart is called when a worker process starts.
	OnStart func(tag string, pgid int)

	// OnResult is called for every finished launch, including start failures.
	OnResult func(r report.Result)

	// OnOrphan is called when a reaped worker's group still has members.
	OnOrphan func(pgid int)

	// OnOrphanGone is called when a tracked orphan group disappears.
	OnOrphanGone func(pgid int)

	// OnSignal is called after a signal is broadcast to n groups.
	OnSignal func(sig syscall.Signal, n int)
}

// Config holds configuration for creating a new Supervisor.
type Config struct {
	Controller process.Controller
	Registry   zoo.Registry
	Reporter   Reporter
	Logger     *slog.Logger
	Callbacks  Callbacks

	// MaxActive is the number of slots.
	MaxActive int

	// CaptureDir buffers each worker's output in a file there; empty sends
	// output straight to Stdout.
	CaptureDir string

	// Stdout receives unbuffered worker output. Nil means os.Stdout.
	Stdout *os.File

	// PID seeds substitution tokens. Zero means os.Getpid().
	PID int

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Supervisor owns the slot table and orphan tracker. It is driven by a
// single scheduler goroutine and is not safe for concurrent use.
type Supervisor struct {
	ctl       process.Controller
	reg       zoo.Registry
	rep       Reporter
	logger    *slog.Logger
	callbacks Callbacks

	slots   *Slots
	orphans *Orphans

	captureDir  string
	stdout      *os.File
	pid         int
	now         func() time.Time
	captureSeq  int64
	substitutes int
}

// New creates a new Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pid := cfg.PID
	if pid == 0 {
		pid = os.Getpid()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	maxActive := cfg.MaxActive
	if maxActive < 1 {
		maxActive = 1
	}

	s := &Supervisor{
		ctl:        cfg.Controller,
		reg:        cfg.Registry,
		rep:        cfg.Reporter,
		logger:     logger,
		callbacks:  cfg.Callbacks,
		slots:      NewSlots(maxActive),
		orphans:    NewOrphans(cfg.Controller, cfg.Registry, logger),
		captureDir: cfg.CaptureDir,
		stdout:     cfg.Stdout,
		pid:        pid,
		now:        now,
	}
	s.orphans.onGone = cfg.Callbacks.OnOrphanGone
	return s
}

// Active returns the number of occupied slots.
func (s *Supervisor) Active() int {
	return s.slots.Active()
}

// MaxActive returns the number of slots.
func (s *Supervisor) MaxActive() int {
	return s.slots.Len()
}

// Orphans returns the number of tracked orphan groups.
func (s *Supervisor) Orphans() int {
	return s.orphans.Len()
}

// Slots copies the slot table.
func (s *Supervisor) Slots() []Slot {
	return s.slots.Snapshot()
}

// OrphanGroups lists the tracked orphan groups.
func (s *Supervisor) OrphanGroups() []int {
	return s.orphans.PGIDs()
}

// Propagate sends sig to every active slot and every orphan group, marking
// the slots stopping. It returns the number of groups signaled.
func (s *Supervisor) Propagate(sig syscall.Signal) int {
	n := 0
	for i := 0; i < s.slots.Len(); i++ {
		slot := s.slots.At(i)
		if slot.PGID == 0 {
			continue
		}
		if err := s.ctl.Signal(slot.PGID, sig); err != nil {
			s.logger.Warn("signal_failed",
				"tag", slot.Entry.Tag,
				"pgid", slot.PGID,
				"signal", sig.String(),
				"error", err,
			)
		} else {
			n++
		}
		slot.Stopping = true
		slot.Signal = sig
	}

	orphans := s.orphans.Len()
	n += orphans - s.orphans.Check(sig)

	s.logger.Info("signal_propagated", "signal", sig.String(), "groups", n)
	if s.callbacks.OnSignal != nil {
		s.callbacks.OnSignal(sig, n)
	}
	return n
}

// CheckOrphans checks every orphan group and releases the ones that are gone.
func (s *Supervisor) CheckOrphans() int {
	return s.orphans.Check(0)
}
