package frame

import (
	"sync/atomic"

	"github.com/spire-dev/spire/pkg/wire"
)

// Inbound is a received frame between read and decode.
// Its payload must not be referenced after Release.
type Inbound struct {
	id       uint16
	payload  []byte
	pool     *Pool
	released atomic.Bool
}

// Rent returns an Inbound whose payload has exactly h.Length bytes,
// ready to be filled from the transport.
func Rent(pool *Pool, h wire.Header) *Inbound {
	return &Inbound{
		id:      h.ID,
		payload: pool.Get(int(h.Length)),
		pool:    pool,
	}
}

// NewInbound wraps a caller-owned payload. Release is a no-op for the bytes.
func NewInbound(id uint16, payload []byte) *Inbound {
	return &Inbound{id: id, payload: payload}
}

// ID returns the protocol id from the header.
func (f *Inbound) ID() uint16 { return f.id }

// Payload returns the payload bytes. Nil after Release.
func (f *Inbound) Payload() []byte {
	if f.released.Load() {
		return nil
	}
	return f.payload
}

// Release returns the payload buffer to its pool. Only the first call has
// an effect.
func (f *Inbound) Release() {
	if !f.released.CompareAndSwap(false, true) {
		if f.pool != nil {
			f.pool.doubleRelease()
		}
		return
	}
	buf := f.payload
	f.payload = nil
	if f.pool != nil {
		f.pool.Put(buf)
	}
}
