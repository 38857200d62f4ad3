package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations that need an established
	// connection.
	ErrNotConnected = errors.New("session: not connected")

	// ErrInvalidState is returned by Connect outside StateIdle.
	ErrInvalidState = errors.New("session: invalid state")

	// ErrQueueClosed is returned when the outbound queue no longer accepts
	// frames.
	ErrQueueClosed = errors.New("session: outbound queue closed")

	// ErrQueueFull is returned by Send when a bounded queue is full.
	ErrQueueFull = errors.New("session: outbound queue full")
)

// ConnectionError reports a failure to establish the connection.
// The session stays in StateIdle.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("session: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports an I/O failure on an established connection.
// Op is one of "open", "read", "write" or "decode".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
