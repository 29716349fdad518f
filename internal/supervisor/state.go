// Package supervisor owns the active-slot table and everything that changes
// it: launching workers into free slots, reaping finished workers, signaling
// running groups, and tracking process groups that outlive their worker.
package supervisor

// State represents the current state of an active slot.
type State int

const (
	// StateFree means no worker occupies the slot.
	StateFree State = iota

	// StateRunning indicates the slot's worker is running.
	StateRunning

	// StateStopping indicates the scheduler has signaled the worker's group.
	StateStopping
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// IsActive returns true if a worker occupies the slot.
func (s State) IsActive() bool {
	return s == StateRunning || s == StateStopping
}
