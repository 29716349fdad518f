package supervisor

import (
	"syscall"
	"time"

	"github.com/randomizedcoder/go-pan/internal/collection"
)

// Slot is one concurrency unit. PGID 0 means the slot is free.
type Slot struct {
	PGID int

	// Stopping is set once the scheduler has signaled the group; Signal is
	// the last signal it sent.
	Stopping bool
	Signal   syscall.Signal

	Start time.Time
	Entry collection.Entry

	// CmdLine is the command line actually run, after substitution.
	CmdLine string

	// Capture is the output capture file, empty when output is not buffered.
	Capture string
}

// State derives the slot's state.
func (s Slot) State() State {
	switch {
	case s.PGID == 0:
		return StateFree
	case s.Stopping:
		return StateStopping
	default:
		return StateRunning
	}
}

// Slots is the fixed-size active slot table.
type Slots struct {
	slots  []Slot
	active int
}

// NewSlots creates a table of n free slots.
func NewSlots(n int) *Slots {
	return &Slots{slots: make([]Slot, n)}
}

// Len returns the table size.
func (s *Slots) Len() int {
	return len(s.slots)
}

// Active returns the number of occupied slots.
func (s *Slots) Active() int {
	return s.active
}

// Free returns the index of the first free slot, or -1 when all are occupied.
func (s *Slots) Free() int {
	for i := range s.slots {
		if s.slots[i].PGID == 0 {
			return i
		}
	}
	return -1
}

// Find returns the index of the slot running pgid, or -1.
func (s *Slots) Find(pgid int) int {
	if pgid == 0 {
		return -1
	}
	for i := range s.slots {
		if s.slots[i].PGID == pgid {
			return i
		}
	}
	return -1
}

// At returns slot i.
func (s *Slots) At(i int) *Slot {
	return &s.slots[i]
}

func (s *Slots) occupy(i int, slot Slot) {
	if s.slots[i].PGID == 0 && slot.PGID != 0 {
		s.active++
	}
	s.slots[i] = slot
}

func (s *Slots) release(i int) {
	if s.slots[i].PGID != 0 {
		s.active--
	}
	s.slots[i] = Slot{}
}

// Snapshot copies the table.
func (s *Slots) Snapshot() []Slot {
	return append([]Slot(nil), s.slots...)
}
