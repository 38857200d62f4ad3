package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when a destination cannot hold the encoding.
	ErrShortBuffer = errors.New("wire: short buffer")

	// ErrShortHeader is returned when fewer than HeaderSize bytes are available.
	ErrShortHeader = errors.New("wire: short header")

	// ErrPayloadTooLarge is returned when a message encodes past MaxPayload.
	ErrPayloadTooLarge = errors.New("wire: payload too large")

	// ErrMalformed marks payloads that cannot be parsed.
	ErrMalformed = errors.New("wire: malformed payload")
)

// EncodingError reports a message that could not be written into its buffer.
type EncodingError struct {
	ProtocolID uint16
	Need       int
	Have       int
	Err        error
}

func (e *EncodingError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, ErrShortBuffer) {
		return fmt.Sprintf("wire: encode protocol %d: %v", e.ProtocolID, e.Err)
	}
	return fmt.Sprintf("wire: encode protocol %d: need %d bytes, have %d", e.ProtocolID, e.Need, e.Have)
}

func (e *EncodingError) Unwrap() error {
	if e.Err == nil {
		return ErrShortBuffer
	}
	return e.Err
}

// DecodeError reports a payload that could not be decoded.
type DecodeError struct {
	ProtocolID uint16
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode protocol %d: %v", e.ProtocolID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
