package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/spire-dev/spire/pkg/wire"
)

// LoginKind selects how a login is treated by the game server.
type LoginKind int32

const (
	LoginKindUnspecified LoginKind = iota
	LoginKindEnter
	LoginKindReconnect
)

func (k LoginKind) String() string {
	switch k {
	case LoginKindEnter:
		return "Enter"
	case LoginKindReconnect:
		return "Reconnect"
	default:
		return "Unspecified"
	}
}

// Login is the one-shot handshake sent before the duplex stream starts.
type Login struct {
	Kind        LoginKind
	Token       string
	CharacterID Uuid
}

func (m *Login) Size() int {
	return sizeVarint(1, uint64(m.Kind)) +
		sizeString(2, m.Token) +
		sizeEmbedded(3, m.CharacterID.size())
}

func (m *Login) MarshalTo(dst []byte) error {
	if err := wire.CheckSize(LoginID, dst, m.Size()); err != nil {
		return err
	}
	b := appendVarint(dst[:0], 1, uint64(m.Kind))
	b = appendString(b, 2, m.Token)
	appendEmbedded(b, 3, m.CharacterID.size(), m.CharacterID.appendTo)
	return nil
}

func (m *Login) Unmarshal(b []byte) error {
	*m = Login{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v uint64
			n, err := consumeVarint(num, typ, b, &v)
			m.Kind = LoginKind(v)
			return n, err
		case 2:
			return consumeString(num, typ, b, &m.Token)
		case 3:
			return consumeEmbedded(num, typ, b, &m.CharacterID)
		}
		return -1, nil
	})
}

// LoginResultCode is the outcome of a Login.
type LoginResultCode int32

const (
	LoginResultUnspecified LoginResultCode = iota
	LoginResultSuccess
	LoginResultInvalidToken
	LoginResultCharacterNotFound
	LoginResultAlreadyConnected
)

func (c LoginResultCode) String() string {
	switch c {
	case LoginResultSuccess:
		return "Success"
	case LoginResultInvalidToken:
		return "InvalidToken"
	case LoginResultCharacterNotFound:
		return "CharacterNotFound"
	case LoginResultAlreadyConnected:
		return "AlreadyConnected"
	default:
		return "Unspecified"
	}
}

// LoginResult is the server's answer to Login.
type LoginResult struct {
	Result LoginResultCode
	Reason string
}

func (m *LoginResult) Size() int {
	return sizeVarint(1, uint64(m.Result)) + sizeString(2, m.Reason)
}

func (m *LoginResult) MarshalTo(dst []byte) error {
	if err := wire.CheckSize(LoginResultID, dst, m.Size()); err != nil {
		return err
	}
	b := appendVarint(dst[:0], 1, uint64(m.Result))
	appendString(b, 2, m.Reason)
	return nil
}

func (m *LoginResult) Unmarshal(b []byte) error {
	*m = LoginResult{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var v uint64
			n, err := consumeVarint(num, typ, b, &v)
			m.Result = LoginResultCode(v)
			return n, err
		case 2:
			return consumeString(num, typ, b, &m.Reason)
		}
		return -1, nil
	})
}
