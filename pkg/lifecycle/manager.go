package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spire-dev/spire/pkg/log"
)

// Common lifecycle errors.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrStopped           = errors.New("already stopped")
	ErrShutdownTimeout   = errors.New("shutdown timeout")
)

// ShutdownTimeout is the default maximum time to wait for workers to exit.
const ShutdownTimeout = 10 * time.Second

// DefaultManager implements Manager.
//
// Valid transitions are Idle -> Connected -> Running, and any non-terminal
// state -> Stopped. Stopped is terminal.
type DefaultManager struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	workers      int
	done         chan struct{}
	doneOnce     sync.Once
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a new lifecycle manager in StateIdle.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DefaultManager{
		state:        StateIdle,
		done:         make(chan struct{}),
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *DefaultManager) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
// Returns ErrStopped from the terminal state and ErrInvalidTransition for
// any other move the state machine does not allow.
func (l *DefaultManager) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	// Validate transition
	switch oldState {
	case StateIdle:
		if newState != StateConnected && newState != StateStopped {
			l.mu.Unlock()
			return ErrInvalidTransition
		}
	case StateConnected:
		if newState != StateRunning && newState != StateStopped {
			l.mu.Unlock()
			return ErrInvalidTransition
		}
	case StateRunning:
		if newState != StateStopped {
			l.mu.Unlock()
			return ErrInvalidTransition
		}
	case StateStopped:
		l.mu.Unlock()
		return ErrStopped
	}

	l.state = newState
	if newState == StateStopped && l.workers == 0 {
		l.closeDone()
	}
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// CanStart returns true if the worker loops may be launched.
func (l *DefaultManager) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateConnected
}

// CanStop returns true if Stop has not run yet.
func (l *DefaultManager) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state != StateStopped
}

// SetCancel stores the cancel function for shutdown.
func (l *DefaultManager) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel triggers shutdown of the workers.
func (l *DefaultManager) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// AddWorker increments the worker count.
func (l *DefaultManager) AddWorker() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workers++
}

// WorkerDone decrements the worker count. The last worker to finish after
// the transition to StateStopped closes Done.
func (l *DefaultManager) WorkerDone() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workers--
	if l.workers == 0 && l.state == StateStopped {
		l.closeDone()
	}
}

func (l *DefaultManager) closeDone() {
	l.doneOnce.Do(func() { close(l.done) })
}

// Done is closed once the state is Stopped and every worker is done.
func (l *DefaultManager) Done() <-chan struct{} {
	return l.done
}

// WaitWithTimeout waits for Done with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *DefaultManager) WaitWithTimeout(timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-l.done:
		return nil
	case <-t.C:
		l.logger.Warn("shutdown timeout, workers still running",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
