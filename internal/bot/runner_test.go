package bot

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spire-dev/spire/internal/domain"
	"github.com/spire-dev/spire/internal/ports"
	"github.com/spire-dev/spire/pkg/dispatch"
	"github.com/spire-dev/spire/pkg/protocol"
	"github.com/spire-dev/spire/pkg/session"
	"github.com/spire-dev/spire/pkg/transport"
	"github.com/spire-dev/spire/pkg/wire"
)

type fakeLobby struct {
	mu         sync.Mutex
	err        error
	accounts   []string
	created    []string
	characters map[string][]domain.Character
}

func newFakeLobby() *fakeLobby {
	return &fakeLobby{characters: map[string][]domain.Character{}}
}

func (l *fakeLobby) CreateDevAccount(ctx context.Context, devID string) (domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return domain.Account{}, l.err
	}
	l.accounts = append(l.accounts, devID)
	return domain.Account{ID: int64(len(l.accounts)), DevID: devID, Token: "tok-" + devID}, nil
}

func (l *fakeLobby) ListCharacters(ctx context.Context, token string) ([]domain.Character, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.characters[token], nil
}

func (l *fakeLobby) CreateCharacter(ctx context.Context, token, name string, race domain.Race) (domain.Character, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := domain.Character{ID: uuid.New(), Name: name, Race: race}
	l.created = append(l.created, name)
	l.characters[token] = append(l.characters[token], ch)
	return ch, nil
}

type memStore struct {
	mu     sync.Mutex
	loaded map[string]domain.Account
	saved  map[string]domain.Account
}

func (s *memStore) Load(ctx context.Context) (map[string]domain.Account, error) {
	out := map[string]domain.Account{}
	for k, v := range s.loaded {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(ctx context.Context, accounts map[string]domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = map[string]domain.Account{}
	for k, v := range accounts {
		s.saved[k] = v
	}
	return nil
}

type failingDialer struct {
	mu    sync.Mutex
	dials int
}

func (d *failingDialer) Dial(ctx context.Context, addr string) (transport.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	return nil, errors.New("connection refused")
}

func readFrame(c net.Conn) (uint16, []byte, error) {
	var hdr [wire.HeaderSize]byte
	if _, err := io.ReadFull(c, hdr[:]); err != nil {
		return 0, nil, err
	}
	h := wire.DecodeHeader(hdr)
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(c, payload); err != nil {
		return 0, nil, err
	}
	return h.ID, payload, nil
}

func writeMessage(t *testing.T, c net.Conn, msg wire.Message) {
	t.Helper()
	buf := make([]byte, wire.FrameSize(msg))
	if _, err := wire.MarshalFrame(wire.DefaultCodec, buf, msg); err != nil {
		t.Errorf("marshal %T: %v", msg, err)
		return
	}
	if _, err := c.Write(buf); err != nil {
		t.Errorf("write %T: %v", msg, err)
	}
}

// acceptLogin reads the handshake and greeting of one bot.
func acceptLogin(t *testing.T, c net.Conn) (*protocol.Login, *protocol.Ping) {
	t.Helper()
	var login *protocol.Login
	var ping *protocol.Ping
	for _, want := range []uint16{protocol.LoginID, protocol.PingID} {
		id, payload, err := readFrame(c)
		if err != nil {
			t.Errorf("read frame: %v", err)
			return nil, nil
		}
		if id != want {
			t.Errorf("frame id = %d, want %d", id, want)
			return nil, nil
		}
		msg, err := protocol.Decode(id, payload)
		if err != nil {
			t.Errorf("decode %d: %v", id, err)
			return nil, nil
		}
		switch m := msg.(type) {
		case *protocol.Login:
			login = m
		case *protocol.Ping:
			ping = m
		}
	}
	return login, ping
}

// gameServer accepts n connections and runs script on each.
func gameServer(t *testing.T, d *transport.PipeDialer, n int, script func(c net.Conn)) *sync.WaitGroup {
	t.Helper()
	var wg sync.WaitGroup
	wg.Add(n)
	go func() {
		for i := 0; i < n; i++ {
			c, err := d.Accept(context.Background())
			if err != nil {
				t.Errorf("accept: %v", err)
				wg.Done()
				continue
			}
			go func() {
				defer wg.Done()
				defer c.Close()
				script(c)
			}()
		}
	}()
	return &wg
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffInitial = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond
	return cfg
}

func newTestRunner(t *testing.T, cfg Config, lobby *fakeLobby, store *memStore, dialer transport.Dialer) *Runner {
	t.Helper()
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	var s ports.AccountStore
	if store != nil {
		s = store
	}
	r, err := NewRunner(cfg, lobby, s, dialer, reg, nil, session.WithConfig(session.DefaultConfig()))
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return r
}

func runWithTimeout(t *testing.T, r *Runner) ([]*Bot, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bots, err := r.Run(ctx)
	if ctx.Err() != nil {
		t.Fatal("Run() did not finish before the deadline")
	}
	return bots, err
}

func TestRunner_LoginAndPlay(t *testing.T) {
	d := transport.NewPipeDialer()
	lobby := newFakeLobby()
	store := &memStore{}

	var gotLogin *protocol.Login
	srv := gameServer(t, d, 1, func(c net.Conn) {
		login, ping := acceptLogin(t, c)
		if login == nil {
			return
		}
		gotLogin = login
		writeMessage(t, c, &protocol.LoginResult{Result: protocol.LoginResultSuccess})
		writeMessage(t, c, &protocol.Pong{Timestamp: ping.Timestamp, ServerTime: time.Now().UnixMilli()})
		writeMessage(t, c, &protocol.ChatMessage{From: "server", Text: "welcome"})
		_, _ = io.Copy(io.Discard, c)
	})

	cfg := testConfig()
	cfg.Duration = 300 * time.Millisecond
	bots, err := runWithTimeout(t, newTestRunner(t, cfg, lobby, store, d))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	srv.Wait()

	b := bots[0]
	if !b.LoggedIn() {
		t.Error("bot not logged in")
	}
	if st := b.Stats(); st.Pongs != 1 || st.Chats != 1 {
		t.Errorf("Stats() = %+v, want 1 pong and 1 chat", st)
	}
	if gotLogin.Kind != protocol.LoginKindEnter || gotLogin.Token != "tok-bot_00001" {
		t.Errorf("login = %+v", gotLogin)
	}
	if gotLogin.CharacterID.UUID() != b.Character().ID {
		t.Errorf("login character = %v, want %v", gotLogin.CharacterID, b.Character().ID)
	}
	if len(lobby.created) != 1 || lobby.created[0] != "bot0001" {
		t.Errorf("created characters = %v, want [bot0001]", lobby.created)
	}
	if b.Character().Race != domain.RaceHuman {
		t.Errorf("race = %v, want human", b.Character().Race)
	}
	if acc, ok := store.saved["bot_00001"]; !ok || acc.Token != "tok-bot_00001" {
		t.Errorf("saved accounts = %v", store.saved)
	}
}

func TestRunner_ReusesCachedAccountAndCharacter(t *testing.T) {
	d := transport.NewPipeDialer()
	lobby := newFakeLobby()
	existing := domain.Character{ID: uuid.New(), Name: "veteran", Race: domain.RaceElf}
	lobby.characters["cached"] = []domain.Character{existing}
	store := &memStore{loaded: map[string]domain.Account{
		"bot_00001": {ID: 9, DevID: "bot_00001", Token: "cached"},
	}}

	srv := gameServer(t, d, 1, func(c net.Conn) {
		login, _ := acceptLogin(t, c)
		if login == nil {
			return
		}
		if login.Token != "cached" || login.CharacterID.UUID() != existing.ID {
			t.Errorf("login = %+v", login)
		}
		writeMessage(t, c, &protocol.LoginResult{Result: protocol.LoginResultSuccess})
		_, _ = io.Copy(io.Discard, c)
	})

	cfg := testConfig()
	cfg.Duration = 50 * time.Millisecond
	if _, err := runWithTimeout(t, newTestRunner(t, cfg, lobby, store, d)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	srv.Wait()

	if len(lobby.accounts) != 0 {
		t.Errorf("lobby accounts created = %v, want none", lobby.accounts)
	}
	if len(lobby.created) != 0 {
		t.Errorf("characters created = %v, want none", lobby.created)
	}
	if store.saved != nil {
		t.Errorf("unchanged cache was saved: %v", store.saved)
	}
}

func TestRunner_FailFastOnDispatchError(t *testing.T) {
	tests := []struct {
		name    string
		reply   func(t *testing.T, c net.Conn)
		wantErr error
	}{
		{
			name: "login rejected",
			reply: func(t *testing.T, c net.Conn) {
				writeMessage(t, c, &protocol.LoginResult{Result: protocol.LoginResultInvalidToken})
			},
			wantErr: dispatch.ErrHandlerFailed,
		},
		{
			name: "unknown protocol",
			reply: func(t *testing.T, c net.Conn) {
				hdr := wire.EncodeHeader(wire.Header{Length: 0, ID: 999})
				_, _ = c.Write(hdr[:])
			},
			wantErr: dispatch.ErrUnknownProtocol,
		},
		{
			name: "malformed payload",
			reply: func(t *testing.T, c net.Conn) {
				hdr := wire.EncodeHeader(wire.Header{Length: 1, ID: protocol.PongID})
				_, _ = c.Write(append(hdr[:], 0xFF))
			},
			wantErr: dispatch.ErrDecodeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := transport.NewPipeDialer()
			srv := gameServer(t, d, 1, func(c net.Conn) {
				if login, _ := acceptLogin(t, c); login == nil {
					return
				}
				tt.reply(t, c)
				_, _ = io.Copy(io.Discard, c)
			})

			bots, err := runWithTimeout(t, newTestRunner(t, testConfig(), newFakeLobby(), nil, d))
			srv.Wait()

			if !errors.Is(err, domain.ErrBotStopped) {
				t.Fatalf("Run() error = %v, want ErrBotStopped", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if !Stopped(bots[0].Err()) {
				t.Errorf("bot Err() = %v", bots[0].Err())
			}
		})
	}
}

func TestRunner_ServerDropIsTransportError(t *testing.T) {
	d := transport.NewPipeDialer()
	srv := gameServer(t, d, 1, func(c net.Conn) {
		acceptLogin(t, c)
	})

	_, err := runWithTimeout(t, newTestRunner(t, testConfig(), newFakeLobby(), nil, d))
	srv.Wait()

	var te *session.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Run() error = %v, want TransportError", err)
	}
	if te.Op != "read" {
		t.Errorf("TransportError.Op = %q, want read", te.Op)
	}
}

func TestRunner_ConnectRetries(t *testing.T) {
	dialer := &failingDialer{}
	cfg := testConfig()
	cfg.ConnectAttempts = 3

	_, err := runWithTimeout(t, newTestRunner(t, cfg, newFakeLobby(), nil, dialer))

	var ce *session.ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("Run() error = %v, want ConnectionError", err)
	}
	if dialer.dials != 3 {
		t.Errorf("dials = %d, want 3", dialer.dials)
	}
}

func TestRunner_LobbyFailure(t *testing.T) {
	lobby := newFakeLobby()
	lobby.err = domain.ErrLobby
	dialer := &failingDialer{}

	_, err := runWithTimeout(t, newTestRunner(t, testConfig(), lobby, nil, dialer))
	if !errors.Is(err, domain.ErrLobby) {
		t.Fatalf("Run() error = %v, want ErrLobby", err)
	}
	if dialer.dials != 0 {
		t.Errorf("dialed %d times after lobby failure", dialer.dials)
	}
}

func TestRunner_ManyBots(t *testing.T) {
	const count = 3
	d := transport.NewPipeDialer()
	lobby := newFakeLobby()

	var mu sync.Mutex
	tokens := map[string]bool{}
	srv := gameServer(t, d, count, func(c net.Conn) {
		login, _ := acceptLogin(t, c)
		if login == nil {
			return
		}
		mu.Lock()
		tokens[login.Token] = true
		mu.Unlock()
		writeMessage(t, c, &protocol.LoginResult{Result: protocol.LoginResultSuccess})
		_, _ = io.Copy(io.Discard, c)
	})

	cfg := testConfig()
	cfg.Count = count
	cfg.Duration = 100 * time.Millisecond
	bots, err := runWithTimeout(t, newTestRunner(t, cfg, lobby, nil, d))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	srv.Wait()

	if len(bots) != count {
		t.Fatalf("Run() returned %d bots, want %d", len(bots), count)
	}
	for _, want := range []string{"tok-bot_00001", "tok-bot_00002", "tok-bot_00003"} {
		if !tokens[want] {
			t.Errorf("no login with token %s; got %v", want, tokens)
		}
	}
}

func TestRunner_ContextCancelStopsCleanly(t *testing.T) {
	d := transport.NewPipeDialer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := gameServer(t, d, 1, func(c net.Conn) {
		acceptLogin(t, c)
		cancel()
		_, _ = io.Copy(io.Discard, c)
	})

	r := newTestRunner(t, testConfig(), newFakeLobby(), nil, d)
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	srv.Wait()
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero count", func(c *Config) { c.Count = 0 }, true},
		{"empty prefix", func(c *Config) { c.Prefix = "" }, true},
		{"empty host", func(c *Config) { c.Host = "" }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"negative duration", func(c *Config) { c.Duration = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNames(t *testing.T) {
	if got := DevID("bot", 7); got != "bot_00007" {
		t.Errorf("DevID() = %q", got)
	}
	if got := CharacterName("bot", 7); got != "bot0007" {
		t.Errorf("CharacterName() = %q", got)
	}
}
