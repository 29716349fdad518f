// Package orchestrator runs the scheduler main loop: it admits commands into
// free slots, reaps them, turns operator signals into escalating broadcasts,
// and drains orphaned process groups before the run ends.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-pan/internal/collection"
	"github.com/randomizedcoder/go-pan/internal/escalation"
	"github.com/randomizedcoder/go-pan/internal/process"
	"github.com/randomizedcoder/go-pan/internal/supervisor"
	"github.com/randomizedcoder/go-pan/internal/zoo"
)

// Exit status bits.
const (
	// ExitFailure is set when a test failed and exit-status tracking or
	// all-stop is enabled.
	ExitFailure = 1 << 0

	// ExitInternal is set on scheduler faults: no free slot when one was
	// expected, or the registry self-record could not be cleared.
	ExitInternal = 1 << 1
)

// Infinite is the starts budget of an unbounded run.
const Infinite = -1

// placeholderWidth is the command-line width of the registry lines reserved
// at startup, wide enough that later records reuse them.
const placeholderWidth = 256

// Phase is the scheduler loop's externally visible state.
type Phase int

const (
	PhaseAdmitting Phase = iota
	PhaseDraining
	PhaseIdle
	PhaseTerminal
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAdmitting:
		return "admitting"
	case PhaseDraining:
		return "draining"
	case PhaseIdle:
		return "idle"
	case PhaseTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Config holds configuration for creating a new Orchestrator.
type Config struct {
	Supervisor *supervisor.Supervisor
	Controller process.Controller
	Registry   zoo.Registry
	Collection *collection.Collection
	Logger     *slog.Logger

	// Tag and CmdLine form the scheduler's own registry record.
	Tag     string
	CmdLine string

	// PID is the scheduler's pid. Zero means os.Getpid().
	PID int

	// Starts is the admission budget; Infinite means unbounded.
	Starts     int
	Sequential bool

	// Seed seeds random picking; zero means clock-seeded.
	Seed int64

	// Picker overrides the picker derived from Sequential and Seed.
	Picker Picker

	// RunTime arms a one-shot alarm; zero disables it.
	RunTime time.Duration

	// StopFile, when present in an unbounded run, stops admission and is removed.
	StopFile string

	AllStop     bool
	ExitStatus  bool
	PauseResume bool

	// Signals replaces OS signal subscription; tests inject signals here.
	Signals <-chan os.Signal

	// Backoff paces waits when nothing is running and the orphan drain.
	Backoff supervisor.BackoffConfig
}

// Status is a point-in-time view of the scheduler for dashboards.
type Status struct {
	Phase      Phase
	Slots      []supervisor.Slot
	Orphans    []int
	LastSignal syscall.Signal
	StartsLeft int
	ExitStatus int
}

// Orchestrator owns the scheduler state. Run drives it from one goroutine;
// Status may be called from any goroutine.
type Orchestrator struct {
	sup    *supervisor.Supervisor
	ctl    process.Controller
	reg    zoo.Registry
	coll   *collection.Collection
	picker Picker
	esc    *escalation.Escalator
	logger *slog.Logger

	tag     string
	cmdLine string
	pid     int

	starts      int
	sequential  bool
	runTime     time.Duration
	stopFile    string
	allStop     bool
	exitStatus  bool
	pauseResume bool
	signals     <-chan os.Signal
	backoffCfg  supervisor.BackoffConfig
	seed        int64

	// Loop state.
	stop   bool
	idle   bool
	status int

	mu       sync.Mutex
	snapshot Status
}

// New creates a new Orchestrator with the given configuration.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Supervisor == nil || cfg.Controller == nil || cfg.Registry == nil {
		return nil, errors.New("orchestrator: supervisor, controller and registry are required")
	}
	if cfg.Collection == nil || cfg.Collection.Len() == 0 {
		return nil, errors.New("orchestrator: no commands to run")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pid := cfg.PID
	if pid == 0 {
		pid = os.Getpid()
	}
	picker := cfg.Picker
	if picker == nil {
		picker = NewPicker(cfg.Collection, cfg.Sequential, cfg.Seed)
	}
	backoffCfg := cfg.Backoff
	if backoffCfg.Initial <= 0 {
		backoffCfg = supervisor.DefaultBackoffConfig()
	}

	o := &Orchestrator{
		sup:         cfg.Supervisor,
		ctl:         cfg.Controller,
		reg:         cfg.Registry,
		coll:        cfg.Collection,
		picker:      picker,
		esc:         escalation.New(),
		logger:      logger,
		tag:         cfg.Tag,
		cmdLine:     cfg.CmdLine,
		pid:         pid,
		starts:      cfg.Starts,
		sequential:  cfg.Sequential,
		runTime:     cfg.RunTime,
		stopFile:    cfg.StopFile,
		allStop:     cfg.AllStop,
		exitStatus:  cfg.ExitStatus,
		pauseResume: cfg.PauseResume,
		signals:     cfg.Signals,
		backoffCfg:  backoffCfg,
		seed:        cfg.Seed,
	}
	o.publish()
	return o, nil
}

// Status returns the most recently published scheduler state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.snapshot
	s.Slots = append([]supervisor.Slot(nil), s.Slots...)
	s.Orphans = append([]int(nil), s.Orphans...)
	return s
}

// Run executes the schedule. It blocks until every admitted test and every
// orphan group is gone and returns the exit status bits. An error means the
// run could not begin.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	if err := o.registerSelf(); err != nil {
		return ExitInternal, err
	}

	signals := o.signals
	if signals == nil {
		ch := make(chan os.Signal, len(escalation.Handled))
		osSignals := make([]os.Signal, len(escalation.Handled))
		for i, s := range escalation.Handled {
			osSignals[i] = s
		}
		signal.Notify(ch, osSignals...)
		defer signal.Stop(ch)
		signals = ch
	}

	var alarm <-chan time.Time
	if o.runTime > 0 {
		timer := time.NewTimer(o.runTime)
		defer timer.Stop()
		alarm = timer.C
	}

	o.logger.Info("scheduler_starting",
		"tag", o.tag,
		"pid", o.pid,
		"commands", o.coll.Len(),
		"concurrency", o.sup.MaxActive(),
		"starts", o.starts,
		"sequential", o.sequential,
		"run_time", o.runTime.String(),
	)

	done := ctx.Done()
	idleWait := supervisor.NewBackoff(o.seed, o.backoffCfg)

	for {
		progress := o.admit()

		if o.starts == 0 {
			if !o.stop {
				o.logger.Info("starts_exhausted")
			}
			o.stop = true
		} else if o.starts == Infinite && o.stopFileFound() {
			o.stop = true
		}

		o.handlePending()
		o.sup.CheckOrphans()
		o.publish()

		active := o.sup.Active()
		if o.stop && active == 0 {
			break
		}
		if o.idle && active == 0 {
			o.idle = false
			o.esc.Reset()
			o.logger.Info("scheduler_resuming")
			continue
		}

		if active == 0 {
			// Nothing to reap: admission made no headway this round.
			delay := idleWait.Next()
			if progress {
				idleWait.Reset()
				delay = 0
			}
			if o.waitSignal(ctx, signals, alarm, &done, delay) {
				alarm = nil
			}
			continue
		}
		idleWait.Reset()

		select {
		case ex := <-o.ctl.Exits():
			o.reap(ex)
		case sig := <-signals:
			o.receive(sig)
		case <-alarm:
			alarm = nil
			o.logger.Info("run_time_elapsed", "run_time", o.runTime.String())
			o.esc.Receive(escalation.Alarm)
		case <-done:
			done = nil
			o.logger.Info("context_cancelled")
			o.esc.Receive(syscall.SIGTERM)
		}
	}

	o.drainOrphans(signals)

	if err := o.reg.Tombstone(o.pid); err != nil {
		o.logger.Error("registry_self_clear_failed", "pid", o.pid, "error", err)
		o.status |= ExitInternal
	}

	o.mu.Lock()
	o.snapshot.Phase = PhaseTerminal
	o.snapshot.ExitStatus = o.status
	o.mu.Unlock()

	o.logger.Info("scheduler_finished", "tag", o.tag, "exit_status", o.status)
	return o.status, nil
}

// registerSelf records the scheduler under its tag and reserves one registry
// line per slot so steady-state registrations reuse them.
func (o *Orchestrator) registerSelf() error {
	if err := o.reg.Register(o.pid, o.tag, o.cmdLine); err != nil {
		return fmt.Errorf("register scheduler: %w", err)
	}
	padding := strings.Repeat(" ", placeholderWidth)
	for i := 0; i < o.sup.MaxActive(); i++ {
		if err := o.reg.Register(i, o.tag, padding); err != nil {
			return fmt.Errorf("reserve registry line: %w", err)
		}
	}
	for i := 0; i < o.sup.MaxActive(); i++ {
		if err := o.reg.Tombstone(i); err != nil {
			return fmt.Errorf("release registry line: %w", err)
		}
	}
	return nil
}

// admit fills free slots while the budget allows, moving past commands that
// fail to start. It reports whether any launch was attempted that consumed
// budget or reached a process.
func (o *Orchestrator) admit() bool {
	progress := false
	failures := 0
	for o.sup.Active() < o.sup.MaxActive() && o.starts != 0 {
		if o.stop || o.idle || o.pending() {
			break
		}

		e := o.picker.Next()
		_, err := o.sup.Launch(e)

		var startErr *supervisor.StartError
		switch {
		case err == nil:
			progress = true
		case errors.Is(err, supervisor.ErrNoFreeSlot):
			o.logger.Error("no_free_slot",
				"active", o.sup.Active(),
				"max_active", o.sup.MaxActive(),
			)
			o.status |= ExitInternal
			o.esc.Receive(syscall.SIGINT)
			return progress
		case errors.As(err, &startErr):
			o.logger.Warn("start_failed", "tag", e.Tag, "error", startErr.Err)
		default:
			o.logger.Warn("admission_failed", "tag", e.Tag, "error", err)
		}

		if (err == nil || o.sequential) && o.starts > 0 {
			o.starts--
			progress = true
		}
		if startErr != nil {
			// A command that cannot run does not hold its slot. Bounded so a
			// collection that cannot start at all waits between rounds.
			failures++
			if failures < o.coll.Len() {
				continue
			}
			return progress
		}
		if err != nil {
			// Retry after the loop has waited.
			return progress
		}
	}
	return progress
}

func (o *Orchestrator) pending() bool {
	_, _, ok := o.esc.Pending()
	return ok
}

// stopFileFound removes the stop file if it exists.
func (o *Orchestrator) stopFileFound() bool {
	if o.stopFile == "" {
		return false
	}
	if _, err := os.Stat(o.stopFile); err != nil {
		return false
	}
	if err := os.Remove(o.stopFile); err != nil {
		o.logger.Warn("stop_file_remove_failed", "path", o.stopFile, "error", err)
	}
	o.logger.Info("stop_file_found", "path", o.stopFile)
	return true
}

// handlePending broadcasts the pending signal, if any, and moves the loop
// toward idle or stop.
func (o *Orchestrator) handlePending() {
	received, deliver, ok := o.esc.Pending()
	if !ok {
		return
	}
	o.esc.Clear()

	if received != escalation.Idle {
		if received == escalation.SoftStop {
			o.pauseResume = false
		}
		o.sup.Propagate(deliver)
	}

	if o.pauseResume {
		if !o.idle {
			o.logger.Info("scheduler_idling", "signal", received.String())
		}
		o.idle = true
	} else {
		if !o.stop {
			o.logger.Info("scheduler_stopping", "signal", received.String())
		}
		o.stop = true
	}
}

func (o *Orchestrator) receive(sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	o.logger.Info("signal_received", "signal", s.String())
	o.esc.Receive(s)
}

// reap processes one exit and applies the failure policies.
func (o *Orchestrator) reap(ex process.Exit) {
	r := o.sup.Reap(ex)
	if !r.Found || !r.Failed {
		return
	}

	if o.pauseResume {
		o.idle = true
	}
	if o.exitStatus || o.allStop {
		o.status |= ExitFailure
	}
	if o.allStop {
		o.logger.Warn("all_stop", "tag", r.Tag, "idling", o.idle)
		o.esc.Receive(syscall.SIGINT)
	}
}

// waitSignal waits up to delay for a signal, the alarm or cancellation. It
// reports whether the alarm fired.
func (o *Orchestrator) waitSignal(ctx context.Context, signals <-chan os.Signal, alarm <-chan time.Time, done *<-chan struct{}, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case sig := <-signals:
		o.receive(sig)
	case <-alarm:
		o.logger.Info("run_time_elapsed", "run_time", o.runTime.String())
		o.esc.Receive(escalation.Alarm)
		return true
	case <-*done:
		*done = nil
		o.logger.Info("context_cancelled", "error", ctx.Err())
		o.esc.Receive(syscall.SIGTERM)
	}
	return false
}

// drainOrphans keeps signaling orphan groups, escalating each round, until
// none remain.
func (o *Orchestrator) drainOrphans(signals <-chan os.Signal) {
	if o.sup.Orphans() == 0 {
		return
	}
	o.logger.Info("orphan_drain_starting", "orphans", o.sup.Orphans())

	b := supervisor.NewBackoff(o.seed, o.backoffCfg)
	for o.sup.CheckOrphans(); o.sup.Orphans() > 0; o.sup.CheckOrphans() {
		timer := time.NewTimer(b.Next())
		select {
		case <-timer.C:
		case sig := <-signals:
			timer.Stop()
			o.receive(sig)
		}

		if _, deliver, ok := o.esc.Pending(); !ok || deliver == 0 {
			o.esc.Step()
		}
		_, deliver, _ := o.esc.Pending()
		o.esc.Clear()
		o.sup.Propagate(deliver)
		o.publish()
	}
	o.logger.Info("orphan_drain_complete")
}

// publish copies the loop state for Status readers.
func (o *Orchestrator) publish() {
	phase := PhaseAdmitting
	switch {
	case o.stop:
		phase = PhaseDraining
	case o.idle:
		phase = PhaseIdle
	}

	s := Status{
		Phase:      phase,
		Slots:      o.sup.Slots(),
		Orphans:    o.sup.OrphanGroups(),
		LastSignal: o.esc.LastSent(),
		StartsLeft: o.starts,
		ExitStatus: o.status,
	}

	o.mu.Lock()
	o.snapshot = s
	o.mu.Unlock()
}
