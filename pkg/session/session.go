package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spire-dev/spire/pkg/frame"
	"github.com/spire-dev/spire/pkg/lifecycle"
	"github.com/spire-dev/spire/pkg/log"
	"github.com/spire-dev/spire/pkg/transport"
	"github.com/spire-dev/spire/pkg/wire"
)

// Dispatcher consumes inbound frames. It owns each frame it is given and
// must release it.
type Dispatcher interface {
	Dispatch(in *frame.Inbound)
}

// Session owns one connection to a game server.
//
// Use New, then Connect, optionally Handshake, then Start. The session runs
// a receive loop and a send loop until Stop is called or either loop hits a
// transport error. Done is closed when both loops have exited.
type Session struct {
	id         string
	dialer     transport.Dialer
	dispatcher Dispatcher
	opts       options
	cfg        Config
	logger     log.Logger
	observer   Observer
	lc         *lifecycle.DefaultManager
	queue      *outQueue

	// mu serializes Connect, Handshake and Start. Stop never takes it.
	mu sync.Mutex

	connMu sync.Mutex
	conn   transport.Conn
	addr   string

	errMu sync.Mutex
	err   error

	done chan struct{}
}

// New creates a session in StateIdle.
func New(dialer transport.Dialer, dispatcher Dispatcher, opts ...Option) (*Session, error) {
	if dialer == nil {
		return nil, errors.New("session: nil dialer")
	}
	if dispatcher == nil {
		return nil, errors.New("session: nil dispatcher")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	observer := o.observer
	if observer == nil {
		observer = noopObserver{}
	}

	id := uuid.NewString()
	logger := log.With(o.logger, log.String("session", id))

	return &Session{
		id:         id,
		dialer:     dialer,
		dispatcher: dispatcher,
		opts:       o,
		cfg:        o.config,
		logger:     logger,
		observer:   observer,
		lc:         lifecycle.NewManager(logger, stateEvents{next: o.emitter, obs: observer}),
		queue:      newOutQueue(o.config.QueueCapacity),
		done:       make(chan struct{}),
	}, nil
}

// ID returns the identifier used in this session's log lines.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() lifecycle.State { return s.lc.State() }

// Running reports whether the session accepts outbound frames.
func (s *Session) Running() bool { return s.lc.State() == lifecycle.StateRunning }

// RemoteAddr returns the dialed address, or "" before Connect succeeds.
func (s *Session) RemoteAddr() string {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.addr
}

// Connect dials host:port and moves the session to StateConnected.
// On failure the session stays in StateIdle and a *ConnectionError is
// returned.
func (s *Session) Connect(ctx context.Context, host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.lc.State(); st != lifecycle.StateIdle {
		return fmt.Errorf("%w: connect in %s", ErrInvalidState, st)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dctx := ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := s.dialer.Dial(dctx, addr)
	if err != nil {
		s.observer.TransportFailed("connect")
		return &ConnectionError{Addr: addr, Err: err}
	}

	s.connMu.Lock()
	s.conn = conn
	s.addr = addr
	s.connMu.Unlock()

	if err := s.lc.TransitionTo(lifecycle.StateConnected, "connected to "+addr); err != nil {
		// Stopped while dialing.
		_ = conn.Close()
		return &ConnectionError{Addr: addr, Err: err}
	}

	s.logger.Info("connected", log.String("addr", addr))
	return nil
}

// Handshake writes msg on a fresh write-only stream. It is valid only in
// StateConnected, before Start.
func (s *Session) Handshake(ctx context.Context, msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lc.State() != lifecycle.StateConnected {
		return ErrNotConnected
	}

	f, err := frame.Encode(s.opts.pool, s.opts.codec, msg)
	if err != nil {
		return err
	}
	defer f.Release()

	uni, err := s.currentConn().OpenUniStream(ctx)
	if err != nil {
		s.observer.TransportFailed("open")
		return &TransportError{Op: "open", Err: err}
	}
	if s.cfg.WriteTimeout > 0 {
		_ = uni.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		defer func() { _ = uni.SetWriteDeadline(time.Time{}) }()
	}

	if err := writeFrame(uni, f.Bytes()); err != nil {
		s.observer.TransportFailed("write")
		return &TransportError{Op: "write", Err: err}
	}
	if err := uni.Close(); err != nil {
		s.observer.TransportFailed("write")
		return &TransportError{Op: "write", Err: err}
	}

	s.observer.FrameSent(f.ProtocolID(), f.Len())
	s.logger.Debug("handshake sent",
		log.Uint16("protocol_id", f.ProtocolID()),
		log.Int("bytes", f.Len()),
	)
	return nil
}

// Start opens the duplex stream, launches the receive and send loops and
// moves the session to StateRunning. Outside StateConnected it logs a
// warning and does nothing.
//
// The loops outlive ctx; only Stop or a transport error ends them.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lc.CanStart() {
		s.logger.Warn("start ignored", log.String("state", s.lc.State().String()))
		return nil
	}

	stream, err := s.currentConn().OpenStream(ctx)
	if err != nil {
		s.observer.TransportFailed("open")
		return &TransportError{Op: "open", Err: err}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.lc.SetCancel(cancel)

	s.lc.AddWorker()
	s.lc.AddWorker()
	if err := s.lc.TransitionTo(lifecycle.StateRunning, "start"); err != nil {
		s.lc.WorkerDone()
		s.lc.WorkerDone()
		cancel()
		_ = stream.Close()
		s.logger.Warn("start aborted", log.Err(err))
		return nil
	}

	if s.opts.greeting != nil {
		s.SendMessage(s.opts.greeting())
	}

	go s.receiveLoop(runCtx, stream)
	go s.sendLoop(runCtx, stream)

	s.logger.Info("session started")
	return nil
}

// Stop cancels both loops, closes the outbound queue and the transport.
// Frames still queued are released without being sent. Only the first
// call has an effect.
func (s *Session) Stop() {
	s.stop(nil)
}

// stop reports whether this call performed the shutdown.
func (s *Session) stop(cause error) bool {
	reason := "stop requested"
	if cause != nil {
		reason = cause.Error()
	}
	if err := s.lc.TransitionTo(lifecycle.StateStopped, reason); err != nil {
		return false
	}

	s.errMu.Lock()
	s.err = cause
	s.errMu.Unlock()

	s.lc.Cancel()

	left := s.queue.close()
	for _, f := range left {
		f.Release()
	}

	if conn := s.currentConn(); conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("close transport", log.Err(err))
		}
	}

	if cause != nil {
		s.logger.Error("session stopped", log.Err(cause), log.Int("dropped", len(left)))
		if s.opts.onError != nil {
			s.opts.onError(cause)
		}
	} else {
		s.logger.Info("session stopped", log.Int("dropped", len(left)))
	}

	go func() {
		<-s.lc.Done()
		close(s.done)
	}()
	return true
}

// Done is closed once the session is stopped and both loops have exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the transport error that stopped the session, or nil when it
// was stopped by Stop or is still running.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Wait blocks until Done is closed or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues f without blocking and reports whether it was accepted.
// Ownership of f passes to the session either way: rejected frames are
// released immediately.
func (s *Session) Send(f *frame.Outbound) bool {
	if f == nil {
		return false
	}
	if !s.Running() {
		f.Release()
		return false
	}
	if err := s.queue.tryPush(f); err != nil {
		s.logger.Debug("frame dropped", log.Uint16("protocol_id", f.ProtocolID()), log.Err(err))
		f.Release()
		return false
	}
	return true
}

// SendAsync queues f, waiting for room in a bounded queue. Frames offered
// to a session that is not running are dropped without error. The only
// error is ctx's when it ends first.
func (s *Session) SendAsync(ctx context.Context, f *frame.Outbound) error {
	if f == nil {
		return nil
	}
	if !s.Running() {
		f.Release()
		return nil
	}
	if err := s.queue.push(ctx, f); err != nil {
		f.Release()
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		return err
	}
	return nil
}

// SendMessage encodes msg with the session's pool and codec and calls Send.
func (s *Session) SendMessage(msg wire.Message) bool {
	if !s.Running() {
		return false
	}
	f, err := frame.Encode(s.opts.pool, s.opts.codec, msg)
	if err != nil {
		s.logger.Warn("encode failed", log.Err(err))
		return false
	}
	return s.Send(f)
}

// SendMessageAsync encodes msg and calls SendAsync.
func (s *Session) SendMessageAsync(ctx context.Context, msg wire.Message) error {
	if !s.Running() {
		return nil
	}
	f, err := frame.Encode(s.opts.pool, s.opts.codec, msg)
	if err != nil {
		return err
	}
	return s.SendAsync(ctx, f)
}

func (s *Session) currentConn() transport.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// fail stops the session with a transport error unless it is already
// stopping, in which case the error is a consequence of the shutdown.
func (s *Session) fail(op string, err error) {
	terr := &TransportError{Op: op, Err: err}
	if s.stop(terr) {
		s.observer.TransportFailed(op)
	}
}

func (s *Session) receiveLoop(ctx context.Context, stream transport.Stream) {
	defer s.lc.WorkerDone()

	var hdr [wire.HeaderSize]byte
	for {
		if err := s.readFull(stream, hdr[:]); err != nil {
			s.fail("read", err)
			return
		}
		h, err := s.opts.codec.Header(hdr[:])
		if err != nil {
			s.fail("read", err)
			return
		}

		in := frame.Rent(s.opts.pool, h)
		if err := s.readFull(stream, in.Payload()); err != nil {
			in.Release()
			s.fail("read", err)
			return
		}

		s.observer.FrameReceived(h.ID, wire.HeaderSize+int(h.Length))
		s.dispatcher.Dispatch(in)

		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Session) sendLoop(ctx context.Context, stream transport.Stream) {
	defer s.lc.WorkerDone()

	for {
		f, err := s.queue.pop(ctx)
		if err != nil {
			return
		}

		if s.cfg.WriteTimeout > 0 {
			_ = stream.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		id, n := f.ProtocolID(), f.Len()
		err = writeFrame(stream, f.Bytes())
		f.Release()

		if err != nil {
			s.fail("write", err)
			return
		}
		s.observer.FrameSent(id, n)
	}
}

// readFull fills buf. A read that returns no bytes and no error means the
// peer closed the stream and is reported as io.EOF.
func (s *Session) readFull(r transport.Stream, buf []byte) error {
	for n := 0; n < len(buf); {
		if s.cfg.ReadTimeout > 0 {
			_ = r.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		m, err := r.Read(buf[n:])
		n += m
		if n == len(buf) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) && n > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if m == 0 {
			return io.EOF
		}
	}
	return nil
}

// writeFrame writes b with a single call.
func writeFrame(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// stateEvents reports start and stop to the observer and forwards every
// transition to the caller's emitter.
type stateEvents struct {
	next lifecycle.EventEmitter
	obs  Observer
}

func (e stateEvents) OnStateChange(previous, current lifecycle.State, reason string) {
	switch {
	case current == lifecycle.StateRunning:
		e.obs.SessionStarted()
	case current == lifecycle.StateStopped && previous == lifecycle.StateRunning:
		e.obs.SessionStopped()
	}
	if e.next != nil {
		e.next.OnStateChange(previous, current, reason)
	}
}
