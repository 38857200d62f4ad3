package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/spire-dev/spire/internal/domain"
	"github.com/spire-dev/spire/internal/ports"
	"github.com/spire-dev/spire/pkg/behavior"
	"github.com/spire-dev/spire/pkg/dispatch"
	"github.com/spire-dev/spire/pkg/lifecycle"
	"github.com/spire-dev/spire/pkg/log"
	"github.com/spire-dev/spire/pkg/protocol"
	"github.com/spire-dev/spire/pkg/session"
	"github.com/spire-dev/spire/pkg/transport"
	"github.com/spire-dev/spire/pkg/wire"
)

// Config contains configuration for a bot run.
type Config struct {
	Count  int
	Prefix string
	Host   string
	Port   int

	// Duration is how long each bot stays connected. Zero means until the
	// run's context ends or the server drops it.
	Duration time.Duration

	ConnectAttempts int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Count:           1,
		Prefix:          "bot",
		Host:            "127.0.0.1",
		Port:            7777,
		ConnectAttempts: 5,
		BackoffInitial:  500 * time.Millisecond,
		BackoffMax:      10 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Count < 1 {
		return fmt.Errorf("%w: bot count must be positive", domain.ErrInvalidConfig)
	}
	if c.Prefix == "" {
		return fmt.Errorf("%w: bot prefix is required", domain.ErrInvalidConfig)
	}
	if c.Host == "" {
		return fmt.Errorf("%w: game host is required", domain.ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: game port %d out of range", domain.ErrInvalidConfig, c.Port)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// Runner provisions and drives a group of bots.
type Runner struct {
	cfg         Config
	lobby       ports.Lobby
	store       ports.AccountStore
	dialer      transport.Dialer
	registry    *dispatch.Registry[*Bot]
	sessionOpts []session.Option
	logger      log.Logger
	tree        behavior.Node[*Bot]

	mu       sync.Mutex
	accounts map[string]domain.Account
	dirty    bool
}

// NewRunner creates a runner. store may be nil to disable the account cache.
func NewRunner(
	cfg Config,
	lobby ports.Lobby,
	store ports.AccountStore,
	dialer transport.Dialer,
	registry *dispatch.Registry[*Bot],
	logger log.Logger,
	sessionOpts ...session.Option,
) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lobby == nil || dialer == nil || registry == nil {
		return nil, fmt.Errorf("%w: lobby, dialer and registry are required", domain.ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	r := &Runner{
		cfg:         cfg,
		lobby:       lobby,
		store:       store,
		dialer:      dialer,
		registry:    registry,
		sessionOpts: sessionOpts,
		logger:      logger,
	}
	r.tree = behavior.Sequence(
		behavior.Action(r.acquireAccount),
		behavior.Selector(
			behavior.Condition(r.existingCharacter),
			behavior.Action(r.createCharacter),
		),
		behavior.Action(r.newSession),
		behavior.Retry(behavior.Condition(r.connect), cfg.ConnectAttempts, r.newBackoff),
		behavior.Action(r.login),
		behavior.Action(r.start),
		behavior.Action(r.play),
	)
	return r, nil
}

// Run starts every bot and blocks until all have finished. The returned
// error joins the failures of individual bots. A bot interrupted by ctx
// ending is not a failure.
func (r *Runner) Run(ctx context.Context) ([]*Bot, error) {
	r.loadAccounts(ctx)

	bots := make([]*Bot, r.cfg.Count)
	errs := make([]error, r.cfg.Count)

	var wg sync.WaitGroup
	for i := range bots {
		b := newBot(i+1, r.cfg.Prefix, r.logger)
		bots[i] = b
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.runBot(ctx, b); err != nil {
				errs[i] = fmt.Errorf("bot %s: %w", b.devID, err)
			}
		}(i)
	}
	wg.Wait()

	r.saveAccounts(ctx)
	return bots, errors.Join(errs...)
}

func (r *Runner) runBot(ctx context.Context, b *Bot) error {
	defer func() {
		if b.session != nil {
			b.session.Stop()
			<-b.session.Done()
		}
	}()

	st, err := r.tree.Run(ctx, b)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	}
	if st != behavior.Success {
		return fmt.Errorf("connect after %d attempts: %w", r.cfg.ConnectAttempts, b.connectErr)
	}
	return nil
}

func (r *Runner) loadAccounts(ctx context.Context) {
	r.accounts = map[string]domain.Account{}
	if r.store == nil {
		return
	}
	accounts, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Warn("failed to load account cache", log.Err(err))
		return
	}
	r.accounts = accounts
	r.logger.Debug("account cache loaded", log.Int("accounts", len(accounts)))
}

func (r *Runner) saveAccounts(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil || !r.dirty {
		return
	}
	if err := r.store.Save(context.WithoutCancel(ctx), r.accounts); err != nil {
		r.logger.Warn("failed to save account cache", log.Err(err))
		return
	}
	r.dirty = false
}

func (r *Runner) acquireAccount(ctx context.Context, b *Bot) error {
	r.mu.Lock()
	acc, ok := r.accounts[b.devID]
	r.mu.Unlock()
	if ok && acc.Valid() == nil {
		b.account = acc
		return nil
	}

	acc, err := r.lobby.CreateDevAccount(ctx, b.devID)
	if err != nil {
		return fmt.Errorf("acquire account: %w", err)
	}
	b.account = acc

	r.mu.Lock()
	r.accounts[b.devID] = acc
	r.dirty = true
	r.mu.Unlock()

	b.logger.Info("account acquired", log.Int64("account_id", acc.ID))
	return nil
}

func (r *Runner) existingCharacter(ctx context.Context, b *Bot) (bool, error) {
	chars, err := r.lobby.ListCharacters(ctx, b.account.Token)
	if err != nil {
		return false, fmt.Errorf("list characters: %w", err)
	}
	if len(chars) == 0 {
		return false, nil
	}
	b.character = chars[0]
	return true, nil
}

func (r *Runner) createCharacter(ctx context.Context, b *Bot) error {
	ch, err := r.lobby.CreateCharacter(ctx, b.account.Token, b.name, domain.RaceHuman)
	if err != nil {
		return fmt.Errorf("create character: %w", err)
	}
	b.character = ch
	b.logger.Info("character created", log.String("name", ch.Name), log.String("character_id", ch.ID.String()))
	return nil
}

func (r *Runner) newSession(ctx context.Context, b *Bot) error {
	opts := make([]session.Option, 0, len(r.sessionOpts)+2)
	opts = append(opts, r.sessionOpts...)
	opts = append(opts,
		session.WithLogger(b.logger),
		session.WithGreeting(func() wire.Message {
			return &protocol.Ping{Timestamp: time.Now().UnixMilli()}
		}),
	)

	s, err := session.New(r.dialer, dispatch.Bind(r.registry, func() *Bot { return b }), opts...)
	if err != nil {
		return err
	}
	b.session = s
	return nil
}

func (r *Runner) newBackoff() *lifecycle.Backoff {
	return lifecycle.NewBackoff(r.cfg.BackoffInitial, r.cfg.BackoffMax)
}

func (r *Runner) connect(ctx context.Context, b *Bot) (bool, error) {
	err := b.session.Connect(ctx, r.cfg.Host, r.cfg.Port)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var ce *session.ConnectionError
	if !errors.As(err, &ce) {
		return false, err
	}
	b.connectErr = err
	b.logger.Warn("connect failed", log.String("addr", net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))), log.Err(err))
	return false, nil
}

func (r *Runner) login(ctx context.Context, b *Bot) error {
	return b.session.Handshake(ctx, &protocol.Login{
		Kind:        protocol.LoginKindEnter,
		Token:       b.account.Token,
		CharacterID: protocol.FromUUID(b.character.ID),
	})
}

func (r *Runner) start(ctx context.Context, b *Bot) error {
	if err := b.session.Start(ctx); err != nil {
		return err
	}
	if !b.session.Running() {
		if err := b.Err(); err != nil {
			return err
		}
		return fmt.Errorf("session not running: %s", b.session.State())
	}
	return nil
}

func (r *Runner) play(ctx context.Context, b *Bot) error {
	var timeout <-chan time.Time
	if r.cfg.Duration > 0 {
		t := time.NewTimer(r.cfg.Duration)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-b.session.Done():
	case <-timeout:
		b.Stop(nil)
	case <-ctx.Done():
		b.Stop(nil)
	}
	<-b.session.Done()

	stats := b.Stats()
	b.logger.Info("bot finished",
		log.Int64("pongs", stats.Pongs),
		log.Int64("chats", stats.Chats),
		log.Int64("positions", stats.Positions),
		log.Duration("rtt", stats.RTT),
	)
	return b.Err()
}
