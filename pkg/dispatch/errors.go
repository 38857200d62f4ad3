package dispatch

import (
	"errors"
	"fmt"
)

// Kind classifies a dispatch failure.
type Kind int

const (
	// UnknownProtocol means no handler is registered for the id.
	UnknownProtocol Kind = iota + 1
	// DecodeFailed means the payload did not decode; no handler ran.
	DecodeFailed
	// HandlerFailed means the handler returned an error or panicked.
	HandlerFailed
)

func (k Kind) String() string {
	switch k {
	case UnknownProtocol:
		return "unknown_protocol"
	case DecodeFailed:
		return "decode_failed"
	case HandlerFailed:
		return "handler_failed"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrUnknownProtocol = errors.New("dispatch: unknown protocol")
	ErrDecodeFailed    = errors.New("dispatch: decode failed")
	ErrHandlerFailed   = errors.New("dispatch: handler failed")
)

func (k Kind) sentinel() error {
	switch k {
	case UnknownProtocol:
		return ErrUnknownProtocol
	case DecodeFailed:
		return ErrDecodeFailed
	case HandlerFailed:
		return ErrHandlerFailed
	default:
		return nil
	}
}

// Error is reported to Context.HandleError for every failed dispatch.
type Error struct {
	Kind       Kind
	ProtocolID uint16
	Name       string
	Err        error
}

func (e *Error) Error() string {
	name := e.Name
	if name == "" {
		name = "?"
	}
	if e.Err == nil {
		return fmt.Sprintf("dispatch %s (%d): %s", name, e.ProtocolID, e.Kind)
	}
	return fmt.Sprintf("dispatch %s (%d): %s: %v", name, e.ProtocolID, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// ErrRegistration is wrapped by every RegistrationError.
var ErrRegistration = errors.New("dispatch: invalid registration")

// RegistrationError reports a handler declaration rejected by Build.
type RegistrationError struct {
	// Handler describes the offending declaration.
	Handler string
	// ProtocolID is set when the message type was resolved.
	ProtocolID uint16
	Reason     string
}

func (e *RegistrationError) Error() string {
	if e.ProtocolID != 0 {
		return fmt.Sprintf("dispatch: register %s (id %d): %s", e.Handler, e.ProtocolID, e.Reason)
	}
	return fmt.Sprintf("dispatch: register %s: %s", e.Handler, e.Reason)
}

func (e *RegistrationError) Unwrap() error { return ErrRegistration }
