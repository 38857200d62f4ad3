package lifecycle

import "time"

// State represents the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateRunning
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnected:
		return "Connected"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager manages the lifecycle state machine for a session.
type Manager interface {
	// State returns the current lifecycle state.
	State() State

	// CanStart returns true if the worker loops may be launched.
	CanStart() bool

	// CanStop returns true if Stop has not run yet.
	CanStop() bool

	// TransitionTo attempts to transition to a new state.
	// Returns an error if the transition is not valid.
	TransitionTo(newState State, reason string) error

	// WaitWithTimeout waits for Done with a timeout.
	// Returns ErrShutdownTimeout if the timeout expires.
	WaitWithTimeout(timeout time.Duration) error

	// AddWorker increments the worker count.
	AddWorker()

	// WorkerDone decrements the worker count.
	WorkerDone()

	// Done is closed once the state is Stopped and every worker is done.
	Done() <-chan struct{}
}
