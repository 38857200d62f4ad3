package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/spire-dev/spire/pkg/wire"
)

// Ping is sent by the client when the duplex stream opens and periodically
// afterwards. Timestamp is unix milliseconds.
type Ping struct {
	Timestamp int64
}

func (m *Ping) Size() int {
	return sizeVarint(1, uint64(m.Timestamp))
}

func (m *Ping) MarshalTo(dst []byte) error {
	if err := wire.CheckSize(PingID, dst, m.Size()); err != nil {
		return err
	}
	appendVarint(dst[:0], 1, uint64(m.Timestamp))
	return nil
}

func (m *Ping) Unmarshal(b []byte) error {
	*m = Ping{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			var v uint64
			n, err := consumeVarint(num, typ, b, &v)
			m.Timestamp = int64(v)
			return n, err
		}
		return -1, nil
	})
}

// Pong answers a Ping. Timestamp echoes the ping; ServerTime is the
// server clock in unix milliseconds.
type Pong struct {
	Timestamp  int64
	ServerTime int64
}

func (m *Pong) Size() int {
	return sizeVarint(1, uint64(m.Timestamp)) + sizeVarint(2, uint64(m.ServerTime))
}

func (m *Pong) MarshalTo(dst []byte) error {
	if err := wire.CheckSize(PongID, dst, m.Size()); err != nil {
		return err
	}
	b := appendVarint(dst[:0], 1, uint64(m.Timestamp))
	appendVarint(b, 2, uint64(m.ServerTime))
	return nil
}

func (m *Pong) Unmarshal(b []byte) error {
	*m = Pong{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var v uint64
		switch num {
		case 1:
			n, err := consumeVarint(num, typ, b, &v)
			m.Timestamp = int64(v)
			return n, err
		case 2:
			n, err := consumeVarint(num, typ, b, &v)
			m.ServerTime = int64(v)
			return n, err
		}
		return -1, nil
	})
}
