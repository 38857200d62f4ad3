package transport

import (
	"context"
	"net"
)

// PipeDialer connects to an in-process peer over net.Pipe. The server side
// of each dialed connection is delivered to Accept.
type PipeDialer struct {
	conns chan net.Conn
}

// NewPipeDialer creates a dialer with no pending connections.
func NewPipeDialer() *PipeDialer {
	return &PipeDialer{conns: make(chan net.Conn, 1)}
}

// Dial creates a pipe and hands its server end to Accept.
func (p *PipeDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	client, server := net.Pipe()
	select {
	case p.conns <- server:
		return NewStreamConn(client), nil
	case <-ctx.Done():
		_ = client.Close()
		_ = server.Close()
		return nil, ctx.Err()
	}
}

// Accept returns the server end of the next dialed connection.
func (p *PipeDialer) Accept(ctx context.Context) (net.Conn, error) {
	select {
	case c := <-p.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
