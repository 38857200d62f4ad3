package transport

import (
	"context"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICDialer dials QUIC with a single ALPN token.
type QUICDialer struct {
	Trust       TrustPolicy
	ALPN        string
	KeepAlive   time.Duration
	IdleTimeout time.Duration
}

// Dial connects to addr.
func (d *QUICDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	alpn := d.ALPN
	if alpn == "" {
		alpn = DefaultALPN
	}
	tlsCfg, err := ClientTLS(d.Trust, addr, alpn)
	if err != nil {
		return nil, err
	}

	conn, err := quic.DialAddr(ctx, addr, tlsCfg, &quic.Config{
		KeepAlivePeriod: d.KeepAlive,
		MaxIdleTimeout:  d.IdleTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &quicConn{conn: conn}, nil
}

type quicConn struct {
	conn quic.Connection
}

// OpenStream opens a bidirectional stream.
func (q *quicConn) OpenStream(ctx context.Context) (Stream, error) {
	return q.conn.OpenStreamSync(ctx)
}

// OpenUniStream opens a unidirectional stream; closing it finishes the
// stream without affecting the connection.
func (q *quicConn) OpenUniStream(ctx context.Context) (SendStream, error) {
	return q.conn.OpenUniStreamSync(ctx)
}

func (q *quicConn) RemoteAddr() string {
	return q.conn.RemoteAddr().String()
}

func (q *quicConn) Close() error {
	return q.conn.CloseWithError(0, "session closed")
}
