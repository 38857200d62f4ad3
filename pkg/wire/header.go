package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// HeaderSize is the encoded size of a frame header.
	HeaderSize = 4

	// MaxPayload is the largest payload a header can describe.
	MaxPayload = 1<<16 - 1
)

// Header precedes every payload on the wire.
type Header struct {
	// Length is the exact payload size in bytes.
	Length uint16

	// ID identifies the message type carried by the payload.
	ID uint16
}

// Codec encodes and decodes headers with a fixed byte order.
// The zero value uses big-endian.
type Codec struct {
	Order binary.ByteOrder
}

// DefaultCodec uses network byte order.
var DefaultCodec = Codec{Order: binary.BigEndian}

func (c Codec) order() binary.ByteOrder {
	if c.Order == nil {
		return binary.BigEndian
	}
	return c.Order
}

// PutHeader writes h into the first HeaderSize bytes of dst.
func (c Codec) PutHeader(dst []byte, h Header) error {
	if len(dst) < HeaderSize {
		return ErrShortBuffer
	}
	o := c.order()
	o.PutUint16(dst[0:2], h.Length)
	o.PutUint16(dst[2:4], h.ID)
	return nil
}

// Header reads a header from the first HeaderSize bytes of src.
func (c Codec) Header(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	o := c.order()
	return Header{
		Length: o.Uint16(src[0:2]),
		ID:     o.Uint16(src[2:4]),
	}, nil
}

// EncodeHeader encodes h with the default codec.
func EncodeHeader(h Header) [HeaderSize]byte {
	var b [HeaderSize]byte
	_ = DefaultCodec.PutHeader(b[:], h)
	return b
}

// DecodeHeader decodes b with the default codec.
func DecodeHeader(b [HeaderSize]byte) Header {
	h, _ := DefaultCodec.Header(b[:])
	return h
}

// ParseByteOrder maps a config value to a byte order.
// An empty string selects big-endian.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "big", "big-endian", "network":
		return binary.BigEndian, nil
	case "little", "little-endian":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("wire: unknown byte order %q", s)
	}
}
