package bot

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spire-dev/spire/internal/domain"
	"github.com/spire-dev/spire/pkg/dispatch"
	"github.com/spire-dev/spire/pkg/log"
	"github.com/spire-dev/spire/pkg/session"
)

// Bot is one simulated player. It is the dispatch context for every frame
// its session receives.
type Bot struct {
	id     int
	devID  string
	name   string
	logger log.Logger

	account   domain.Account
	character domain.Character
	session   *session.Session

	loggedIn  atomic.Bool
	pongs     atomic.Int64
	chats     atomic.Int64
	positions atomic.Int64
	rtt       atomic.Int64

	// connectErr is the last dial failure, owned by the runner goroutine.
	connectErr error

	mu  sync.Mutex
	err error
}

func newBot(id int, prefix string, logger log.Logger) *Bot {
	devID := DevID(prefix, id)
	return &Bot{
		id:     id,
		devID:  devID,
		name:   CharacterName(prefix, id),
		logger: log.With(logger, log.Int("bot", id), log.String("dev_id", devID)),
	}
}

// DevID returns the lobby login for bot id.
func DevID(prefix string, id int) string {
	return fmt.Sprintf("%s_%05d", prefix, id)
}

// CharacterName returns the name given to the character bot id creates.
func CharacterName(prefix string, id int) string {
	return fmt.Sprintf("%s%04d", prefix, id)
}

// ID returns the bot's index within its run.
func (b *Bot) ID() int { return b.id }

// DevID returns the lobby login.
func (b *Bot) DevID() string { return b.devID }

// Account returns the account in use, once acquired.
func (b *Bot) Account() domain.Account { return b.account }

// Character returns the character in use, once selected.
func (b *Bot) Character() domain.Character { return b.character }

// LoggedIn reports whether the server accepted the login.
func (b *Bot) LoggedIn() bool { return b.loggedIn.Load() }

// Stats is a snapshot of what the bot has received.
type Stats struct {
	Pongs     int64
	Chats     int64
	Positions int64
	RTT       time.Duration
}

// Stats returns counters updated by the handlers.
func (b *Bot) Stats() Stats {
	return Stats{
		Pongs:     b.pongs.Load(),
		Chats:     b.chats.Load(),
		Positions: b.positions.Load(),
		RTT:       time.Duration(b.rtt.Load()),
	}
}

// HandleError stops the bot on any dispatch failure.
func (b *Bot) HandleError(err *dispatch.Error) {
	b.Stop(err)
}

// Stop records cause and stops the session. Only the first cause is kept.
func (b *Bot) Stop(cause error) {
	if cause != nil {
		b.mu.Lock()
		first := b.err == nil
		if first {
			b.err = fmt.Errorf("%w: %w", domain.ErrBotStopped, cause)
		}
		b.mu.Unlock()
		if first {
			b.logger.Error("bot stopping", log.Err(cause))
		}
	}
	if b.session != nil {
		b.session.Stop()
	}
}

// Err returns why the bot stopped: its own cause first, then the
// session's transport error.
func (b *Bot) Err() error {
	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return err
	}
	if b.session != nil {
		return b.session.Err()
	}
	return nil
}

// Stopped reports whether err came from the fail-fast policy.
func Stopped(err error) bool {
	return errors.Is(err, domain.ErrBotStopped)
}
