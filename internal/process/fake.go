package process

import (
	"sync"
	"syscall"
	"time"
)

// FakeFirstPID is the pid handed to the first process a Fake starts.
const FakeFirstPID = 1000

// Fake is an in-memory Controller. Nothing is executed: tests decide when a
// started process exits and whether its group outlives it.
type Fake struct {
	mu      sync.Mutex
	nextPID int
	groups  map[int]*fakeGroup
	order   []int
	exits   chan Exit
	started chan int

	// StartErr, when set, is consulted before each start; a non-nil error
	// fails the start the way an exec failure would.
	StartErr func(req StartRequest) error

	// OnSignal runs after a signal other than 0 is recorded, outside the lock.
	OnSignal func(f *Fake, pgid int, sig syscall.Signal)
}

type fakeGroup struct {
	req     StartRequest
	running bool
	members bool
	signals []syscall.Signal
}

// NewFake creates a Fake.
func NewFake() *Fake {
	return &Fake{
		nextPID: FakeFirstPID,
		groups:  make(map[int]*fakeGroup),
		exits:   make(chan Exit, DefaultExitBuffer),
		started: make(chan int, DefaultExitBuffer),
	}
}

// Start implements Controller.
func (f *Fake) Start(req StartRequest) (int, error) {
	if f.StartErr != nil {
		if err := f.StartErr(req); err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	pid := f.nextPID
	f.nextPID++
	f.groups[pid] = &fakeGroup{req: req, running: true, members: true}
	f.order = append(f.order, pid)
	f.mu.Unlock()

	select {
	case f.started <- pid:
	default:
	}
	return pid, nil
}

// Signal implements Controller.
func (f *Fake) Signal(pgid int, sig syscall.Signal) error {
	f.mu.Lock()
	g, ok := f.groups[pgid]
	if !ok || !g.members {
		f.mu.Unlock()
		return ErrGone
	}
	if sig != 0 {
		g.signals = append(g.signals, sig)
	}
	hook := f.OnSignal
	f.mu.Unlock()

	if sig != 0 && hook != nil {
		hook(f, pgid, sig)
	}
	return nil
}

// Alive implements Controller.
func (f *Fake) Alive(pgid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[pgid]
	return ok && g.members
}

// Exits implements Controller.
func (f *Fake) Exits() <-chan Exit {
	return f.exits
}

// Started delivers the pid of every successful start, in start order. Starts
// beyond the channel's buffer are not delivered.
func (f *Fake) Started() <-chan int {
	return f.started
}

// Exit terminates pid with an exit code. When keepGroup is set the group
// keeps members, as if the process left a detached descendant behind.
func (f *Fake) Exit(pid, code int, keepGroup bool) {
	f.finish(pid, Exit{PID: pid, Outcome: OutcomeExited, Code: code}, keepGroup)
}

// Kill terminates pid as if sig had killed it, taking the whole group along.
func (f *Fake) Kill(pid int, sig syscall.Signal) {
	f.finish(pid, Exit{PID: pid, Outcome: OutcomeSignaled, Code: int(sig)}, false)
}

func (f *Fake) finish(pid int, ex Exit, keepGroup bool) {
	f.mu.Lock()
	g, ok := f.groups[pid]
	if !ok || !g.running {
		f.mu.Unlock()
		return
	}
	g.running = false
	g.members = keepGroup
	f.mu.Unlock()

	ex.EndTime = time.Now()
	f.exits <- ex
}

// Vanish removes every remaining member of group pgid.
func (f *Fake) Vanish(pgid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.groups[pgid]; ok {
		g.members = false
	}
}

// Running reports whether the leader of pgid has not exited yet.
func (f *Fake) Running(pgid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[pgid]
	return ok && g.running
}

// Signals returns the signals delivered to pgid, oldest first. Liveness checks are not recorded.
func (f *Fake) Signals(pgid int) []syscall.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[pgid]
	if !ok {
		return nil
	}
	return append([]syscall.Signal(nil), g.signals...)
}

// Request returns the StartRequest that created pgid.
func (f *Fake) Request(pgid int) (StartRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[pgid]
	if !ok {
		return StartRequest{}, false
	}
	return g.req, true
}

// StartOrder returns every started pid in start order.
func (f *Fake) StartOrder() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.order...)
}
