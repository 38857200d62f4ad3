package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/spire-dev/spire/pkg/frame"
	"github.com/spire-dev/spire/pkg/log"
	"github.com/spire-dev/spire/pkg/wire"
)

type entry[C Context] struct {
	id     uint16
	name   string
	source string
	invoke invokeFunc[C]
}

// Registry maps protocol ids to decode and handler steps. It is immutable
// after Build and safe for concurrent use without locking.
type Registry[C Context] struct {
	table    Table
	entries  map[uint16]*entry[C]
	logger   log.Logger
	tracer   trace.Tracer
	observer Observer
}

// Dispatch decodes in and runs its handler. The inbound buffer is released
// as soon as decoding finishes. Failures go to ctx.HandleError; Dispatch
// itself never panics, even when a handler or the error hook does.
func (r *Registry[C]) Dispatch(ctx C, in *frame.Inbound) {
	id := in.ID()
	e, ok := r.entries[id]
	if !ok {
		in.Release()
		r.fail(ctx, &Error{Kind: UnknownProtocol, ProtocolID: id, Name: r.table.Name(id)}, nil)
		return
	}

	var span trace.Span
	if r.tracer != nil {
		_, span = r.tracer.Start(context.Background(), "dispatch "+e.name,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.Int("spire.protocol.id", int(id)),
				attribute.String("spire.protocol.name", e.name),
				attribute.Int("spire.payload.size", len(in.Payload())),
			))
		defer span.End()
	}

	msg, err := r.decode(id, in.Payload())
	in.Release()
	if err != nil {
		r.fail(ctx, &Error{Kind: DecodeFailed, ProtocolID: id, Name: e.name, Err: err}, span)
		return
	}

	start := time.Now()
	if err := invoke(e.invoke, ctx, msg); err != nil {
		r.fail(ctx, &Error{Kind: HandlerFailed, ProtocolID: id, Name: e.name, Err: err}, span)
		return
	}
	if r.observer != nil {
		r.observer.Dispatched(id, e.name, time.Since(start))
	}
}

// DispatchBytes dispatches a caller-owned payload.
func (r *Registry[C]) DispatchBytes(ctx C, id uint16, payload []byte) {
	r.Dispatch(ctx, frame.NewInbound(id, payload))
}

// IDs returns the registered protocol ids in ascending order.
func (r *Registry[C]) IDs() []uint16 {
	ids := make([]uint16, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered handlers.
func (r *Registry[C]) Len() int { return len(r.entries) }

func (r *Registry[C]) decode(id uint16, payload []byte) (wire.Message, error) {
	msg, ok := r.table.New(id)
	if !ok {
		return nil, &wire.DecodeError{ProtocolID: id, Err: fmt.Errorf("id %d left the table", id)}
	}
	// Build checked that every registered type is an Unmarshaler.
	if err := msg.(wire.Unmarshaler).Unmarshal(payload); err != nil {
		return nil, &wire.DecodeError{ProtocolID: id, Err: fmt.Errorf("%w: %v", wire.ErrMalformed, err)}
	}
	return msg, nil
}

func (r *Registry[C]) fail(ctx C, err *Error, span trace.Span) {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Kind.String())
	}
	if r.observer != nil {
		r.observer.DispatchFailed(err.Kind, err.ProtocolID)
	}
	r.logger.Debug("dispatch failed",
		log.Uint16("protocol_id", err.ProtocolID),
		log.String("protocol", err.Name),
		log.String("kind", err.Kind.String()),
		log.Err(err.Err),
	)
	r.report(ctx, err)
}

// report hands err to the context. A panicking hook is logged and dropped
// so the receive loop survives it.
func (r *Registry[C]) report(ctx C, err *Error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("error hook panicked",
				log.Uint16("protocol_id", err.ProtocolID),
				log.String("kind", err.Kind.String()),
				log.Any("panic", rec),
			)
		}
	}()
	ctx.HandleError(err)
}

func invoke[C Context](fn invokeFunc[C], ctx C, msg wire.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return fn(ctx, msg)
}

// Bound pairs a registry with a context factory. Sessions hold a Bound and
// call Dispatch for each received frame.
type Bound[C Context] struct {
	registry *Registry[C]
	context  func() C
}

// Bind returns a dispatcher that asks newContext for the context of every
// frame.
func Bind[C Context](r *Registry[C], newContext func() C) *Bound[C] {
	return &Bound[C]{registry: r, context: newContext}
}

// Dispatch dispatches in with a context from the factory.
func (b *Bound[C]) Dispatch(in *frame.Inbound) {
	b.registry.Dispatch(b.context(), in)
}
