package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// Outcome classifies a process state change.
type Outcome int

const (
	OutcomeExited Outcome = iota
	OutcomeSignaled
	OutcomeStopped
	OutcomeUnknown
)

// String returns the name used in result logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeExited:
		return "exited"
	case OutcomeSignaled:
		return "signaled"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Classify extracts the outcome, its code and the core-dump flag from a wait status.
func Classify(status syscall.WaitStatus) (Outcome, int, bool) {
	switch {
	case status.Signaled():
		return OutcomeSignaled, int(status.Signal()), status.CoreDump()
	case status.Exited():
		return OutcomeExited, status.ExitStatus(), false
	case status.Stopped():
		return OutcomeStopped, int(status.StopSignal()), false
	default:
		return OutcomeUnknown, 0, false
	}
}

// StartErrorCode maps a failed start to the status a child that could not
// exec would have exited with: the underlying errno where one exists.
func StartErrorCode(err error) int {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, ErrEmptyCommand) {
		return int(syscall.ENOENT)
	}

	// Unknown error, assume exit code 1
	return 1
}
