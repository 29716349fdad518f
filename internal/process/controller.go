// Package process provides the process-group capability the scheduler drives:
// start a command in its own process group, signal or check a group, and
// observe each started process's termination.
package process

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// ErrGone is returned by Signal when the process group no longer exists.
var ErrGone = errors.New("process group is gone")

// Controller creates and controls process groups.
// This interface allows the scheduler to run against an in-memory fake.
type Controller interface {
	// Start launches cmdline as the leader of a new process group whose id
	// equals the returned pid. An error means the command never ran; the
	// child, if one was created, has already been reaped.
	Start(req StartRequest) (pid int, err error)

	// Signal delivers sig to every member of process group pgid.
	Signal(pgid int, sig syscall.Signal) error

	// Alive reports whether process group pgid still has members.
	Alive(pgid int) bool

	// Exits delivers one Exit per successfully started process, in the
	// order the operating system reports them.
	Exits() <-chan Exit
}

// StartRequest describes one launch.
type StartRequest struct {
	// CmdLine is run under "sh -c" when it contains shell syntax, otherwise
	// split on whitespace and executed directly.
	CmdLine string

	// Output receives both stdout and stderr. Nil inherits the caller's stdout.
	Output *os.File
}

// Exit captures how a started process terminated.
type Exit struct {
	PID     int
	Outcome Outcome
	// Code is the exit status, terminating signal, or stop signal depending on Outcome.
	Code     int
	Core     bool
	UserTime time.Duration
	SysTime  time.Duration
	EndTime  time.Time
}
