//go:build unix

package process

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultExitBuffer sizes the exit channel so waiters rarely block.
const DefaultExitBuffer = 256

// OS is the Controller backed by the operating system.
type OS struct {
	exits chan Exit
}

// NewOS creates an OS controller.
func NewOS() *OS {
	return &OS{exits: make(chan Exit, DefaultExitBuffer)}
}

// Start launches the command as the leader of a new process group. Failure
// to exec is reported synchronously by the runtime through its close-on-exec
// status pipe, and the failed child is reaped before Start returns.
func (o *OS) Start(req StartRequest) (int, error) {
	cmd, err := BuildCommand(req.CmdLine)
	if err != nil {
		return 0, err
	}

	out := req.Output
	if out == nil {
		out = os.Stdout
	}
	cmd.Stdout = out
	cmd.Stderr = out

	// Set process group so the whole subtree can be signaled as a unit
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	// The exit status is collected with wait4 below, not through os.Process.
	cmd.Process.Release()

	go o.wait(pid)
	return pid, nil
}

// wait blocks until pid terminates and publishes its exit.
func (o *OS) wait(pid int) {
	var status unix.WaitStatus
	var usage unix.Rusage
	for {
		_, err := unix.Wait4(pid, &status, 0, &usage)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			o.exits <- Exit{PID: pid, Outcome: OutcomeUnknown, EndTime: time.Now()}
			return
		}
		break
	}

	outcome, code, core := Classify(syscall.WaitStatus(status))
	o.exits <- Exit{
		PID:      pid,
		Outcome:  outcome,
		Code:     code,
		Core:     core,
		UserTime: time.Duration(usage.Utime.Nano()),
		SysTime:  time.Duration(usage.Stime.Nano()),
		EndTime:  time.Now(),
	}
}

// Signal sends sig to process group pgid.
func (o *OS) Signal(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		return fmt.Errorf("signal process group %d: invalid id", pgid)
	}
	err := unix.Kill(-pgid, sig)
	if err == unix.ESRCH {
		return ErrGone
	}
	if err != nil {
		return fmt.Errorf("kill(%d, %d): %w", -pgid, sig, err)
	}
	return nil
}

// Alive checks process group pgid with signal 0. A permission error means
// members exist that we may not signal.
func (o *OS) Alive(pgid int) bool {
	if pgid <= 0 {
		return false
	}
	err := unix.Kill(-pgid, 0)
	return err == nil || err == unix.EPERM
}

// Exits returns the channel of process exits.
func (o *OS) Exits() <-chan Exit {
	return o.exits
}
