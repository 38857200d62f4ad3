package transport

import (
	"context"
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"
)

// TCPDialer dials plain TCP, or TLS over TCP when Trust is set.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration
	Trust     *TrustPolicy
	ALPN      string
}

// Dial connects to addr.
func (d *TCPDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if d.Trust == nil {
		return NewStreamConn(rawConn), nil
	}

	var alpn []string
	if d.ALPN != "" {
		alpn = []string{d.ALPN}
	}
	tlsCfg, err := ClientTLS(*d.Trust, addr, alpn...)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return NewStreamConn(conn), nil
}

// streamConn adapts a single net.Conn to Conn. The connection itself is the
// duplex stream; uni streams write on it directly.
type streamConn struct {
	conn   net.Conn
	opened atomic.Bool
}

// NewStreamConn wraps c. Used for TCP and for in-memory pipes in tests.
func NewStreamConn(c net.Conn) Conn {
	return &streamConn{conn: c}
}

func (s *streamConn) OpenStream(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.opened.CompareAndSwap(false, true) {
		return nil, ErrStreamOpen
	}
	return s.conn, nil
}

func (s *streamConn) OpenUniStream(ctx context.Context) (SendStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return uniWriter{s.conn}, nil
}

func (s *streamConn) RemoteAddr() string {
	if a := s.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

func (s *streamConn) Close() error { return s.conn.Close() }

// uniWriter writes on the shared connection and leaves it open on Close.
type uniWriter struct{ c net.Conn }

func (u uniWriter) Write(p []byte) (int, error)        { return u.c.Write(p) }
func (u uniWriter) SetWriteDeadline(t time.Time) error { return u.c.SetWriteDeadline(t) }
func (u uniWriter) Close() error                       { return nil }
