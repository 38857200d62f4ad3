package dispatch

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/spire-dev/spire/pkg/log"
)

// Observer receives dispatch outcomes. pkg/metrics implements it.
type Observer interface {
	Dispatched(id uint16, name string, took time.Duration)
	DispatchFailed(kind Kind, id uint16)
}

// Option configures a Registry at Build.
type Option func(*options)

type options struct {
	logger   log.Logger
	tracer   trace.Tracer
	observer Observer
}

func defaultOptions() options {
	return options{logger: log.NewNoopLogger()}
}

// WithLogger sets the logger for dispatch failures (debug level).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer records one span per dispatch.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithObserver reports dispatch outcomes to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}
