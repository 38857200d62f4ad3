package wire

// Message is a typed value that can be framed.
type Message interface {
	// ProtocolID returns the message type identifier.
	ProtocolID() uint16

	// Size returns the exact encoded payload size in bytes.
	Size() int

	// MarshalTo writes exactly Size() bytes into dst.
	// Returns *EncodingError if dst is shorter than Size().
	MarshalTo(dst []byte) error
}

// Unmarshaler is implemented by messages that can be decoded.
// Implementations must copy any bytes they keep.
type Unmarshaler interface {
	Unmarshal(b []byte) error
}

// FrameSize returns the encoded frame size of msg.
func FrameSize(msg Message) int {
	return HeaderSize + msg.Size()
}

// MarshalFrame writes the header and payload of msg into dst and returns
// the number of bytes written.
func MarshalFrame(c Codec, dst []byte, msg Message) (int, error) {
	size := msg.Size()
	if size > MaxPayload {
		return 0, &EncodingError{ProtocolID: msg.ProtocolID(), Need: size, Have: MaxPayload, Err: ErrPayloadTooLarge}
	}
	total := HeaderSize + size
	if len(dst) < total {
		return 0, &EncodingError{ProtocolID: msg.ProtocolID(), Need: total, Have: len(dst)}
	}
	if err := c.PutHeader(dst, Header{Length: uint16(size), ID: msg.ProtocolID()}); err != nil {
		return 0, err
	}
	if err := msg.MarshalTo(dst[HeaderSize:total]); err != nil {
		return 0, err
	}
	return total, nil
}

// CheckSize returns an *EncodingError when dst cannot hold size bytes.
// Message implementations call it at the top of MarshalTo.
func CheckSize(id uint16, dst []byte, size int) error {
	if len(dst) < size {
		return &EncodingError{ProtocolID: id, Need: size, Have: len(dst)}
	}
	return nil
}
