// Package session runs one client connection to a game server.
//
// A Session moves through the lifecycle states Idle, Connected, Running
// and Stopped:
//
//	s, err := session.New(dialer, registry.Bind(newCtx), session.WithLogger(logger))
//	if err := s.Connect(ctx, host, port); err != nil {
//	    return err // *ConnectionError, still Idle
//	}
//	_ = s.Handshake(ctx, &protocol.Login{...})
//	_ = s.Start(ctx)
//	s.SendMessage(&protocol.Ping{Timestamp: now})
//	<-s.Done()
//
// While running, a receive loop reads frames and hands them to the
// Dispatcher one at a time, and a send loop drains the outbound queue
// writing each frame with a single call. A read that yields no bytes, or
// any other I/O failure, stops the session with a *TransportError.
//
// Frames passed to Send or SendAsync belong to the session. Each is
// released exactly once: by the send loop after its write, or by Stop if
// it was still queued. Frames offered after Stop are released and dropped.
package session
