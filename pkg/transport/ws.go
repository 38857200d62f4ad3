package transport

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSDialer dials a websocket endpoint. Each frame write becomes one binary
// message; reads see the concatenated message payloads as a byte stream.
type WSDialer struct {
	Path             string
	HandshakeTimeout time.Duration
	Trust            *TrustPolicy
}

// Dial connects to ws://addr/Path, or wss:// when Trust is set.
func (d *WSDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: d.Path}
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	if d.Trust != nil {
		tlsCfg, err := ClientTLS(*d.Trust, addr)
		if err != nil {
			return nil, err
		}
		u.Scheme = "wss"
		dialer.TLSClientConfig = tlsCfg
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return NewWSConn(conn), nil
}

// wsConn adapts a websocket connection to Conn.
type wsConn struct {
	stream *wsStream
	opened bool
	mu     sync.Mutex
}

// NewWSConn wraps an established websocket connection.
func NewWSConn(c *websocket.Conn) Conn {
	return &wsConn{stream: &wsStream{conn: c}}
}

func (w *wsConn) OpenStream(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.opened {
		return nil, ErrStreamOpen
	}
	w.opened = true
	return w.stream, nil
}

func (w *wsConn) OpenUniStream(ctx context.Context) (SendStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return wsUni{w.stream}, nil
}

func (w *wsConn) RemoteAddr() string { return w.stream.conn.RemoteAddr().String() }

func (w *wsConn) Close() error { return w.stream.Close() }

type wsStream struct {
	conn *websocket.Conn
	r    io.Reader

	closeOnce sync.Once
	closeErr  error
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			typ, r, err := s.conn.NextReader()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
					return 0, io.EOF
				}
				return 0, err
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}
		n, err := s.r.Read(p)
		if errors.Is(err, io.EOF) {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) SetReadDeadline(t time.Time) error  { return s.conn.SetReadDeadline(t) }
func (s *wsStream) SetWriteDeadline(t time.Time) error { return s.conn.SetWriteDeadline(t) }

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

type wsUni struct{ s *wsStream }

func (u wsUni) Write(p []byte) (int, error)        { return u.s.Write(p) }
func (u wsUni) SetWriteDeadline(t time.Time) error { return u.s.SetWriteDeadline(t) }
func (u wsUni) Close() error                       { return nil }
