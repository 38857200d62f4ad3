package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	// ErrStreamOpen is returned when a stream-less transport is asked for a
	// second duplex stream.
	ErrStreamOpen = errors.New("transport: stream already open")

	// ErrUnknownKind is returned by New for unsupported transport kinds.
	ErrUnknownKind = errors.New("transport: unknown kind")
)

// Kind names a transport implementation.
type Kind string

const (
	KindTCP  Kind = "tcp"
	KindQUIC Kind = "quic"
	KindWS   Kind = "ws"
)

// DefaultALPN is the application protocol negotiated over QUIC and TLS.
const DefaultALPN = "spire"

// SendStream is the write half used for one-shot messages.
type SendStream interface {
	io.WriteCloser
	SetWriteDeadline(t time.Time) error
}

// Stream is a reliable ordered duplex byte stream.
type Stream interface {
	io.Reader
	SendStream
	SetReadDeadline(t time.Time) error
}

// Conn is an established connection to a game server.
type Conn interface {
	// OpenStream opens the duplex stream used while a session runs.
	OpenStream(ctx context.Context) (Stream, error)

	// OpenUniStream opens a write-only stream for a single message.
	// Transports without native streams write on the connection itself and
	// treat Close as a no-op.
	OpenUniStream(ctx context.Context) (SendStream, error)

	// RemoteAddr returns the peer address.
	RemoteAddr() string

	// Close tears the connection down and unblocks pending I/O.
	Close() error
}

// Dialer establishes connections.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Config selects and tunes a dialer.
type Config struct {
	Kind           Kind
	Trust          TrustPolicy
	ALPN           string
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	IdleTimeout    time.Duration
	// WSPath is the request path for websocket dials.
	WSPath string
	// TLS enables TLS for tcp and wss for ws. QUIC always uses TLS.
	TLS bool
}

// ParseKind validates a config value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindTCP:
		return KindTCP, nil
	case KindQUIC, KindWS:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// New builds the dialer described by cfg.
func New(cfg Config) (Dialer, error) {
	alpn := cfg.ALPN
	if alpn == "" {
		alpn = DefaultALPN
	}

	switch cfg.Kind {
	case "", KindTCP:
		d := &TCPDialer{Timeout: cfg.ConnectTimeout, KeepAlive: cfg.KeepAlive}
		if cfg.TLS {
			d.Trust = &cfg.Trust
			d.ALPN = alpn
		}
		return d, nil
	case KindQUIC:
		return &QUICDialer{
			Trust:       cfg.Trust,
			ALPN:        alpn,
			KeepAlive:   cfg.KeepAlive,
			IdleTimeout: cfg.IdleTimeout,
		}, nil
	case KindWS:
		d := &WSDialer{Path: cfg.WSPath, HandshakeTimeout: cfg.ConnectTimeout}
		if cfg.TLS {
			d.Trust = &cfg.Trust
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
