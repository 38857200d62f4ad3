package protocol

import (
	"encoding/binary"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Uuid carries a 128-bit identifier as two big-endian halves.
type Uuid struct {
	High uint64
	Low  uint64
}

// FromUUID splits u into its big-endian halves.
func FromUUID(u uuid.UUID) Uuid {
	return Uuid{
		High: binary.BigEndian.Uint64(u[:8]),
		Low:  binary.BigEndian.Uint64(u[8:]),
	}
}

// UUID joins the halves back into a uuid.UUID.
func (u Uuid) UUID() uuid.UUID {
	var out uuid.UUID
	binary.BigEndian.PutUint64(out[:8], u.High)
	binary.BigEndian.PutUint64(out[8:], u.Low)
	return out
}

// IsZero reports whether both halves are zero.
func (u Uuid) IsZero() bool { return u.High == 0 && u.Low == 0 }

func (u Uuid) String() string { return u.UUID().String() }

func (u *Uuid) size() int {
	return sizeFixed64(1, u.High) + sizeFixed64(2, u.Low)
}

func (u *Uuid) appendTo(b []byte) []byte {
	b = appendFixed64(b, 1, u.High)
	return appendFixed64(b, 2, u.Low)
}

// Unmarshal decodes an embedded Uuid.
func (u *Uuid) Unmarshal(b []byte) error {
	*u = Uuid{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeFixed64(num, typ, b, &u.High)
		case 2:
			return consumeFixed64(num, typ, b, &u.Low)
		}
		return -1, nil
	})
}
