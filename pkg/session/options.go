package session

import (
	"github.com/spire-dev/spire/pkg/frame"
	"github.com/spire-dev/spire/pkg/lifecycle"
	"github.com/spire-dev/spire/pkg/log"
	"github.com/spire-dev/spire/pkg/wire"
)

// Observer receives session events. Calls are made from the session's
// goroutines and must not block.
type Observer interface {
	SessionStarted()
	SessionStopped()
	FrameSent(id uint16, size int)
	FrameReceived(id uint16, size int)
	TransportFailed(op string)
}

// Option configures optional behavior of a Session.
type Option func(*options)

type options struct {
	config   Config
	logger   log.Logger
	pool     *frame.Pool
	codec    wire.Codec
	observer Observer
	emitter  lifecycle.EventEmitter
	greeting func() wire.Message
	onError  func(error)
}

func defaultOptions() options {
	return options{
		config: DefaultConfig(),
		logger: log.NewNoopLogger(),
		pool:   frame.Default,
		codec:  wire.DefaultCodec,
	}
}

// WithConfig replaces the default Config.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPool sets the buffer pool for inbound and outbound frames.
func WithPool(pool *frame.Pool) Option {
	return func(o *options) {
		if pool != nil {
			o.pool = pool
		}
	}
}

// WithCodec sets the header codec. Both peers must agree on its byte order.
func WithCodec(c wire.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithObserver reports session events, typically to metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithEventEmitter receives lifecycle state changes.
func WithEventEmitter(e lifecycle.EventEmitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

// WithGreeting queues the message built by fn as the first frame after
// Start.
func WithGreeting(fn func() wire.Message) Option {
	return func(o *options) {
		o.greeting = fn
	}
}

// WithErrorHandler is called once with the error that stopped the session.
// Stops requested through Stop do not call it.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

type noopObserver struct{}

func (noopObserver) SessionStarted()           {}
func (noopObserver) SessionStopped()           {}
func (noopObserver) FrameSent(uint16, int)     {}
func (noopObserver) FrameReceived(uint16, int) {}
func (noopObserver) TransportFailed(string)    {}
