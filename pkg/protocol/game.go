package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/spire-dev/spire/pkg/wire"
)

// ChatMessage is a line of chat, in either direction.
type ChatMessage struct {
	Channel uint32
	From    string
	Text    string
}

func (m *ChatMessage) Size() int {
	return sizeVarint(1, uint64(m.Channel)) + sizeString(2, m.From) + sizeString(3, m.Text)
}

func (m *ChatMessage) MarshalTo(dst []byte) error {
	if err := wire.CheckSize(ChatMessageID, dst, m.Size()); err != nil {
		return err
	}
	b := appendVarint(dst[:0], 1, uint64(m.Channel))
	b = appendString(b, 2, m.From)
	appendString(b, 3, m.Text)
	return nil
}

func (m *ChatMessage) Unmarshal(b []byte) error {
	*m = ChatMessage{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v uint64
			n, err := consumeVarint(num, typ, b, &v)
			m.Channel = uint32(v)
			return n, err
		case 2:
			return consumeString(num, typ, b, &m.From)
		case 3:
			return consumeString(num, typ, b, &m.Text)
		}
		return -1, nil
	})
}

// MoveCommand asks the server to move the player's character.
type MoveCommand struct {
	Seq uint32
	X   float32
	Y   float32
}

func (m *MoveCommand) Size() int {
	return sizeVarint(1, uint64(m.Seq)) + sizeFloat(2, m.X) + sizeFloat(3, m.Y)
}

func (m *MoveCommand) MarshalTo(dst []byte) error {
	if err := wire.CheckSize(MoveCommandID, dst, m.Size()); err != nil {
		return err
	}
	b := appendVarint(dst[:0], 1, uint64(m.Seq))
	b = appendFloat(b, 2, m.X)
	appendFloat(b, 3, m.Y)
	return nil
}

func (m *MoveCommand) Unmarshal(b []byte) error {
	*m = MoveCommand{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v uint64
			n, err := consumeVarint(num, typ, b, &v)
			m.Seq = uint32(v)
			return n, err
		case 2:
			return consumeFloat(num, typ, b, &m.X)
		case 3:
			return consumeFloat(num, typ, b, &m.Y)
		}
		return -1, nil
	})
}

// EntityPosition is pushed by the server when an entity moves.
type EntityPosition struct {
	Entity Uuid
	X      float32
	Y      float32
}

func (m *EntityPosition) Size() int {
	return sizeEmbedded(1, m.Entity.size()) + sizeFloat(2, m.X) + sizeFloat(3, m.Y)
}

func (m *EntityPosition) MarshalTo(dst []byte) error {
	if err := wire.CheckSize(EntityPositionID, dst, m.Size()); err != nil {
		return err
	}
	b := appendEmbedded(dst[:0], 1, m.Entity.size(), m.Entity.appendTo)
	b = appendFloat(b, 2, m.X)
	appendFloat(b, 3, m.Y)
	return nil
}

func (m *EntityPosition) Unmarshal(b []byte) error {
	*m = EntityPosition{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeEmbedded(num, typ, b, &m.Entity)
		case 2:
			return consumeFloat(num, typ, b, &m.X)
		case 3:
			return consumeFloat(num, typ, b, &m.Y)
		}
		return -1, nil
	})
}
