package frame

import (
	"sync/atomic"

	"github.com/spire-dev/spire/pkg/wire"
)

// Outbound is an encoded frame waiting to be written.
//
// The holder owns the buffer until Release. Ownership moves with the frame:
// once passed to a session the caller must not touch it again. Release is
// effective exactly once; later calls are counted by the pool and ignored.
type Outbound struct {
	buf      []byte
	id       uint16
	pool     *Pool
	released atomic.Bool
}

// Encode rents a buffer from pool and writes the frame for msg into it.
func Encode(pool *Pool, c wire.Codec, msg wire.Message) (*Outbound, error) {
	size := wire.FrameSize(msg)
	if size-wire.HeaderSize > wire.MaxPayload {
		return nil, &wire.EncodingError{
			ProtocolID: msg.ProtocolID(),
			Need:       size - wire.HeaderSize,
			Have:       wire.MaxPayload,
			Err:        wire.ErrPayloadTooLarge,
		}
	}

	buf := pool.Get(size)
	if _, err := wire.MarshalFrame(c, buf, msg); err != nil {
		pool.Put(buf)
		return nil, err
	}
	return &Outbound{buf: buf, id: msg.ProtocolID(), pool: pool}, nil
}

// EncodeHeap encodes msg into a buffer that is not returned to any pool.
func EncodeHeap(c wire.Codec, msg wire.Message) (*Outbound, error) {
	buf := make([]byte, wire.FrameSize(msg))
	if _, err := wire.MarshalFrame(c, buf, msg); err != nil {
		return nil, err
	}
	return &Outbound{buf: buf, id: msg.ProtocolID()}, nil
}

// FromPayload frames an already encoded payload.
func FromPayload(pool *Pool, c wire.Codec, id uint16, payload []byte) (*Outbound, error) {
	if len(payload) > wire.MaxPayload {
		return nil, &wire.EncodingError{ProtocolID: id, Need: len(payload), Have: wire.MaxPayload, Err: wire.ErrPayloadTooLarge}
	}
	buf := pool.Get(wire.HeaderSize + len(payload))
	_ = c.PutHeader(buf, wire.Header{Length: uint16(len(payload)), ID: id})
	copy(buf[wire.HeaderSize:], payload)
	return &Outbound{buf: buf, id: id, pool: pool}, nil
}

// Bytes returns header and payload. Nil after Release.
func (f *Outbound) Bytes() []byte {
	if f.released.Load() {
		return nil
	}
	return f.buf
}

// Len returns the frame size in bytes.
func (f *Outbound) Len() int { return len(f.buf) }

// ProtocolID returns the id in the frame header.
func (f *Outbound) ProtocolID() uint16 { return f.id }

// Pooled reports whether the buffer came from a pool.
func (f *Outbound) Pooled() bool { return f.pool != nil }

// Released reports whether Release has run.
func (f *Outbound) Released() bool { return f.released.Load() }

// Release returns the buffer to its pool. Only the first call has an effect.
func (f *Outbound) Release() {
	if !f.released.CompareAndSwap(false, true) {
		if f.pool != nil {
			f.pool.doubleRelease()
		}
		return
	}
	buf := f.buf
	f.buf = nil
	if f.pool != nil {
		f.pool.Put(buf)
	}
}
