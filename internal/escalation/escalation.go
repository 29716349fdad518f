// Package escalation turns repeated operator stop requests into progressively
// more forceful signals for the scheduler to broadcast.
package escalation

import "syscall"

const (
	// SoftStop asks workers to stop and disables pause-and-resume. A repeat
	// escalates to SIGINT.
	SoftStop = syscall.SIGUSR1

	// Idle asks the scheduler to stop admitting work. It is never delivered
	// to workers and never escalates.
	Idle = syscall.SIGUSR2

	// Alarm is the run-time expiry; it is handled as SIGTERM.
	Alarm = syscall.SIGALRM
)

// Handled lists every signal the scheduler should subscribe to.
var Handled = []syscall.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGHUP,
	SoftStop,
	Idle,
	Alarm,
}

// rank orders deliverable signals from mildest to strongest.
func rank(sig syscall.Signal) int {
	switch sig {
	case SoftStop:
		return 1
	case syscall.SIGINT:
		return 2
	case syscall.SIGTERM:
		return 3
	case syscall.SIGHUP:
		return 4
	case syscall.SIGKILL:
		return 5
	default:
		return 0
	}
}

// Escalator holds the escalation ratchet and the single pending-signal slot.
// It is owned by the scheduler loop and is not safe for concurrent use.
type Escalator struct {
	lastSent syscall.Signal
	received syscall.Signal
	deliver  syscall.Signal
	pending  bool
}

// New returns an idle escalator.
func New() *Escalator {
	return &Escalator{}
}

// Receive records an externally delivered signal and computes the signal to deliver.
func (e *Escalator) Receive(sig syscall.Signal) {
	if sig == Alarm {
		sig = syscall.SIGTERM
	}
	e.received = sig
	e.pending = true

	if sig == Idle {
		return
	}

	switch {
	case e.lastSent == 0:
		e.deliver = sig
	case e.lastSent == syscall.SIGKILL:
		e.deliver = syscall.SIGKILL
	case e.lastSent == SoftStop:
		e.deliver = syscall.SIGINT
	case e.lastSent == syscall.SIGTERM:
		e.deliver = syscall.SIGHUP
	case e.lastSent == syscall.SIGHUP:
		e.deliver = syscall.SIGKILL
	case e.lastSent == sig, e.lastSent == syscall.SIGINT && sig == SoftStop:
		// A repeated soft stop after its SIGINT is a repeated interrupt.
		e.deliver = syscall.SIGTERM
	case rank(sig) > rank(e.lastSent):
		e.deliver = sig
	default:
		e.deliver = e.lastSent
	}
	e.lastSent = e.deliver
}

// Step pushes the ratchet one notch as if SIGINT had been received.
func (e *Escalator) Step() {
	e.Receive(syscall.SIGINT)
}

// Pending reports the signal received since the last Clear and the signal to
// deliver for it. deliver is 0 for the Idle class.
func (e *Escalator) Pending() (received, deliver syscall.Signal, ok bool) {
	if !e.pending {
		return 0, 0, false
	}
	if e.received == Idle {
		return e.received, 0, true
	}
	return e.received, e.deliver, true
}

// Clear empties the pending slot. Escalation history is kept.
func (e *Escalator) Clear() {
	e.pending = false
	e.received = 0
	e.deliver = 0
}

// Reset re-arms the ratchet so the next signal is delivered unescalated.
func (e *Escalator) Reset() {
	e.lastSent = 0
}

// LastSent returns the most recently computed delivery signal, 0 when idle.
func (e *Escalator) LastSent() syscall.Signal {
	return e.lastSent
}
