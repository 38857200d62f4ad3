package bot

import (
	"fmt"
	"time"

	"github.com/spire-dev/spire/pkg/dispatch"
	"github.com/spire-dev/spire/pkg/log"
	"github.com/spire-dev/spire/pkg/protocol"
)

// NewRegistry builds the dispatch registry shared by every bot.
func NewRegistry(opts ...dispatch.Option) (*dispatch.Registry[*Bot], error) {
	b := dispatch.NewBuilder[*Bot](protocol.Table)
	dispatch.Handle(b, onLoginResult)
	dispatch.Handle(b, onPong)
	dispatch.Handle(b, onChatMessage)
	dispatch.Handle(b, onEntityPosition)
	return b.Build(opts...)
}

func onLoginResult(b *Bot, m *protocol.LoginResult) error {
	b.logger.Info("login result", log.String("result", m.Result.String()), log.String("reason", m.Reason))
	if m.Result != protocol.LoginResultSuccess {
		return fmt.Errorf("login rejected: %s", m.Result)
	}
	b.loggedIn.Store(true)
	return nil
}

func onPong(b *Bot, m *protocol.Pong) error {
	b.pongs.Add(1)
	if m.Timestamp > 0 {
		rtt := time.Since(time.UnixMilli(m.Timestamp))
		if rtt >= 0 {
			b.rtt.Store(int64(rtt))
		}
		b.logger.Debug("pong", log.Duration("rtt", rtt))
	}
	return nil
}

func onChatMessage(b *Bot, m *protocol.ChatMessage) error {
	b.chats.Add(1)
	b.logger.Debug("chat", log.String("from", m.From), log.String("text", m.Text))
	return nil
}

func onEntityPosition(b *Bot, m *protocol.EntityPosition) error {
	b.positions.Add(1)
	return nil
}
