package dispatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/spire-dev/spire/pkg/frame"
	"github.com/spire-dev/spire/pkg/protocol"
	"github.com/spire-dev/spire/pkg/wire"
)

// testContext records everything the registry reports.
type testContext struct {
	mu     sync.Mutex
	errors []*Error
	pings  []int64
	logins []protocol.LoginResultCode
}

func (c *testContext) HandleError(err *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *testContext) Errors() []*Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Error{}, c.errors...)
}

func onPing(c *testContext, m *protocol.Ping) error {
	c.pings = append(c.pings, m.Timestamp)
	return nil
}

func onLoginResult(c *testContext, m *protocol.LoginResult) {
	c.logins = append(c.logins, m.Result)
}

func encode(t *testing.T, msg wire.Message) []byte {
	t.Helper()
	b := make([]byte, msg.Size())
	if err := msg.MarshalTo(b); err != nil {
		t.Fatalf("MarshalTo() error = %v", err)
	}
	return b
}

func buildRegistry(t *testing.T, opts ...Option) *Registry[*testContext] {
	t.Helper()
	b := NewBuilder[*testContext](protocol.Table)
	Handle(b, onPing)
	b.HandleFunc(onLoginResult)
	Handle(b, func(c *testContext, m *protocol.ChatMessage) error {
		return errors.New("chat rejected")
	})
	Handle(b, func(c *testContext, m *protocol.MoveCommand) error {
		panic("move exploded")
	})
	reg, err := b.Build(opts...)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return reg
}

func TestRegistry_DispatchesToHandlers(t *testing.T) {
	reg := buildRegistry(t)
	ctx := &testContext{}

	reg.DispatchBytes(ctx, protocol.PingID, encode(t, &protocol.Ping{Timestamp: 42}))
	reg.DispatchBytes(ctx, protocol.LoginResultID, encode(t, &protocol.LoginResult{Result: protocol.LoginResultSuccess}))

	if len(ctx.pings) != 1 || ctx.pings[0] != 42 {
		t.Errorf("pings = %v, want [42]", ctx.pings)
	}
	if len(ctx.logins) != 1 || ctx.logins[0] != protocol.LoginResultSuccess {
		t.Errorf("logins = %v, want [Success]", ctx.logins)
	}
	if errs := ctx.Errors(); len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}

	ids := reg.IDs()
	want := []uint16{protocol.PingID, protocol.LoginResultID, protocol.ChatMessageID, protocol.MoveCommandID}
	if len(ids) != len(want) || reg.Len() != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestRegistry_UnknownProtocol(t *testing.T) {
	reg := buildRegistry(t)
	ctx := &testContext{}

	reg.DispatchBytes(ctx, 9999, []byte{1, 2, 3})
	// The next frame is still handled.
	reg.DispatchBytes(ctx, protocol.PingID, encode(t, &protocol.Ping{Timestamp: 1}))

	errs := ctx.Errors()
	if len(errs) != 1 {
		t.Fatalf("HandleError called %d times, want exactly 1", len(errs))
	}
	if errs[0].Kind != UnknownProtocol || errs[0].ProtocolID != 9999 {
		t.Errorf("error = %+v, want UnknownProtocol(9999)", errs[0])
	}
	if !errors.Is(errs[0], ErrUnknownProtocol) {
		t.Error("error should match ErrUnknownProtocol")
	}
	if len(ctx.pings) != 1 {
		t.Errorf("pings = %v, frame after unknown id was not handled", ctx.pings)
	}
}

func TestRegistry_RegisteredButNotHandled(t *testing.T) {
	reg := buildRegistry(t)
	ctx := &testContext{}

	// Pong is in the table but has no handler.
	reg.DispatchBytes(ctx, protocol.PongID, nil)

	errs := ctx.Errors()
	if len(errs) != 1 || errs[0].Kind != UnknownProtocol || errs[0].Name != "Pong" {
		t.Errorf("errors = %v, want one UnknownProtocol for Pong", errs)
	}
}

func TestRegistry_DecodeFailed(t *testing.T) {
	reg := buildRegistry(t)
	ctx := &testContext{}

	reg.DispatchBytes(ctx, protocol.PingID, []byte{0x08, 0xff})

	errs := ctx.Errors()
	if len(errs) != 1 {
		t.Fatalf("HandleError called %d times, want 1", len(errs))
	}
	if errs[0].Kind != DecodeFailed || !errors.Is(errs[0], ErrDecodeFailed) {
		t.Errorf("error = %v, want DecodeFailed", errs[0])
	}
	var decErr *wire.DecodeError
	if !errors.As(errs[0], &decErr) {
		t.Errorf("cause = %v, want *wire.DecodeError", errs[0].Err)
	}
	if len(ctx.pings) != 0 {
		t.Error("handler ran for a payload that failed to decode")
	}
}

func TestRegistry_HandlerFailed(t *testing.T) {
	reg := buildRegistry(t)

	tests := []struct {
		name string
		id   uint16
		msg  wire.Message
	}{
		{"returned error", protocol.ChatMessageID, &protocol.ChatMessage{Text: "hi"}},
		{"panic", protocol.MoveCommandID, &protocol.MoveCommand{Seq: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &testContext{}
			reg.DispatchBytes(ctx, tt.id, encode(t, tt.msg))

			errs := ctx.Errors()
			if len(errs) != 1 {
				t.Fatalf("HandleError called %d times, want 1", len(errs))
			}
			if errs[0].Kind != HandlerFailed || !errors.Is(errs[0], ErrHandlerFailed) {
				t.Errorf("error = %v, want HandlerFailed", errs[0])
			}
			if errs[0].Err == nil {
				t.Error("HandlerFailed should carry the cause")
			}
		})
	}
}

func TestRegistry_ReleasesInboundBeforeHandler(t *testing.T) {
	pool := frame.NewPool()
	var inUseDuringHandler int64 = -1

	b := NewBuilder[*testContext](protocol.Table)
	Handle(b, func(c *testContext, m *protocol.Ping) error {
		inUseDuringHandler = pool.Stats().InUse()
		return nil
	})
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	payload := encode(t, &protocol.Ping{Timestamp: 5})
	for _, tc := range []struct {
		id      uint16
		payload []byte
	}{
		{protocol.PingID, payload},
		{protocol.PingID, []byte{0xff}},
		{4242, payload},
	} {
		in := frame.Rent(pool, wire.Header{Length: uint16(len(tc.payload)), ID: tc.id})
		copy(in.Payload(), tc.payload)
		reg.Dispatch(&testContext{}, in)
	}

	if inUseDuringHandler != 0 {
		t.Errorf("buffers in use while handler ran = %d, want 0", inUseDuringHandler)
	}
	st := pool.Stats()
	if st.InUse() != 0 || st.DoubleReleases != 0 {
		t.Errorf("pool stats = %+v, want every buffer released once", st)
	}
}

func TestBuild_RegistrationErrors(t *testing.T) {
	tests := []struct {
		name     string
		register func(b *Builder[*testContext])
	}{
		{
			name: "duplicate id",
			register: func(b *Builder[*testContext]) {
				Handle(b, onPing)
				b.HandleFunc(func(c *testContext, m *protocol.Ping) {})
			},
		},
		{
			name:     "nil handler",
			register: func(b *Builder[*testContext]) { Handle[*testContext, *protocol.Ping](b, nil) },
		},
		{
			name:     "not a func",
			register: func(b *Builder[*testContext]) { b.HandleFunc(42) },
		},
		{
			name:     "wrong arity",
			register: func(b *Builder[*testContext]) { b.HandleFunc(func(m *protocol.Ping) {}) },
		},
		{
			name:     "wrong context type",
			register: func(b *Builder[*testContext]) { b.HandleFunc(func(c string, m *protocol.Ping) {}) },
		},
		{
			name:     "second parameter not a message",
			register: func(b *Builder[*testContext]) { b.HandleFunc(func(c *testContext, m int) {}) },
		},
		{
			name: "bad result",
			register: func(b *Builder[*testContext]) {
				b.HandleFunc(func(c *testContext, m *protocol.Ping) int { return 0 })
			},
		},
		{
			name: "interface message type",
			register: func(b *Builder[*testContext]) {
				b.HandleFunc(func(c *testContext, m wire.Message) {})
			},
		},
		{
			name: "message not in table",
			register: func(b *Builder[*testContext]) {
				Handle(b, func(c *testContext, m *strayMessage) error { return nil })
			},
		},
		{
			name: "table decodes a different type",
			register: func(b *Builder[*testContext]) {
				Handle(b, func(c *testContext, m *impostor) error { return nil })
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder[*testContext](protocol.Table)
			tt.register(b)

			reg, err := b.Build()
			if reg != nil {
				t.Error("Build() returned a registry alongside an error")
			}
			var regErr *RegistrationError
			if !errors.As(err, &regErr) {
				t.Fatalf("Build() error = %v, want *RegistrationError", err)
			}
			if !errors.Is(err, ErrRegistration) {
				t.Error("RegistrationError should match ErrRegistration")
			}
		})
	}
}

func TestBuild_InterfaceContextParameter(t *testing.T) {
	b := NewBuilder[*testContext](protocol.Table)
	var got int64
	b.HandleFunc(func(c Context, m *protocol.Ping) error {
		got = m.Timestamp
		return nil
	})
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	reg.DispatchBytes(&testContext{}, protocol.PingID, encode(t, &protocol.Ping{Timestamp: 11}))
	if got != 11 {
		t.Errorf("handler saw %d, want 11", got)
	}
}

func TestBind(t *testing.T) {
	reg := buildRegistry(t)
	ctx := &testContext{}
	calls := 0
	bound := Bind(reg, func() *testContext {
		calls++
		return ctx
	})

	bound.Dispatch(frame.NewInbound(protocol.PingID, encode(t, &protocol.Ping{Timestamp: 3})))
	bound.Dispatch(frame.NewInbound(1, nil))

	if calls != 2 {
		t.Errorf("factory called %d times, want 2", calls)
	}
	if len(ctx.pings) != 1 || len(ctx.Errors()) != 1 {
		t.Errorf("pings=%v errors=%v", ctx.pings, ctx.Errors())
	}
}

type countingObserver struct {
	mu     sync.Mutex
	ok     int
	failed map[Kind]int
}

func (o *countingObserver) Dispatched(id uint16, name string, took time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ok++
}

func (o *countingObserver) DispatchFailed(kind Kind, id uint16) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failed == nil {
		o.failed = map[Kind]int{}
	}
	o.failed[kind]++
}

func TestRegistry_ObserverAndTracer(t *testing.T) {
	obs := &countingObserver{}
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	reg := buildRegistry(t, WithObserver(obs), WithTracer(tp.Tracer("test")), WithLogger(nil))
	ctx := &testContext{}

	reg.DispatchBytes(ctx, protocol.PingID, encode(t, &protocol.Ping{Timestamp: 1}))
	reg.DispatchBytes(ctx, 1, nil)
	reg.DispatchBytes(ctx, protocol.PingID, []byte{0xff})
	reg.DispatchBytes(ctx, protocol.ChatMessageID, nil)

	if obs.ok != 1 {
		t.Errorf("Dispatched = %d, want 1", obs.ok)
	}
	for _, k := range []Kind{UnknownProtocol, DecodeFailed, HandlerFailed} {
		if obs.failed[k] != 1 {
			t.Errorf("DispatchFailed[%s] = %d, want 1", k, obs.failed[k])
		}
	}

	// Unknown ids have no entry and so no span.
	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("ended spans = %d, want 3", len(spans))
	}

	tests := []struct {
		name       string
		id         int64
		status     codes.Code
		statusDesc string
	}{
		{"dispatch Ping", int64(protocol.PingID), codes.Unset, ""},
		{"dispatch Ping", int64(protocol.PingID), codes.Error, "decode_failed"},
		{"dispatch ChatMessage", int64(protocol.ChatMessageID), codes.Error, "handler_failed"},
	}
	for i, tt := range tests {
		span := spans[i]
		if span.Name() != tt.name {
			t.Errorf("span %d name = %q, want %q", i, span.Name(), tt.name)
		}
		if span.SpanKind() != trace.SpanKindConsumer {
			t.Errorf("span %d kind = %v, want consumer", i, span.SpanKind())
		}
		attrs := map[attribute.Key]attribute.Value{}
		for _, kv := range span.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		if got := attrs["spire.protocol.id"].AsInt64(); got != tt.id {
			t.Errorf("span %d spire.protocol.id = %d, want %d", i, got, tt.id)
		}
		if _, ok := attrs["spire.protocol.name"]; !ok {
			t.Errorf("span %d missing spire.protocol.name", i)
		}
		if _, ok := attrs["spire.payload.size"]; !ok {
			t.Errorf("span %d missing spire.payload.size", i)
		}
		if span.Status().Code != tt.status || span.Status().Description != tt.statusDesc {
			t.Errorf("span %d status = %v %q, want %v %q",
				i, span.Status().Code, span.Status().Description, tt.status, tt.statusDesc)
		}

		recorded := false
		for _, ev := range span.Events() {
			if ev.Name == "exception" {
				recorded = true
			}
		}
		if recorded != (tt.status == codes.Error) {
			t.Errorf("span %d recorded error = %v, want %v", i, recorded, tt.status == codes.Error)
		}
	}
}

// panickingContext blows up in its error hook.
type panickingContext struct{ calls int }

func (c *panickingContext) HandleError(*Error) {
	c.calls++
	panic("hook exploded")
}

func TestRegistry_ErrorHookPanicIsContained(t *testing.T) {
	b := NewBuilder[*panickingContext](protocol.Table)
	pings := 0
	Handle(b, func(c *panickingContext, m *protocol.Ping) error {
		pings++
		return nil
	})
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ctx := &panickingContext{}

	reg.DispatchBytes(ctx, 1, nil)
	reg.DispatchBytes(ctx, protocol.PingID, []byte{0xff})
	reg.DispatchBytes(ctx, protocol.PingID, encode(t, &protocol.Ping{Timestamp: 2}))

	if ctx.calls != 2 {
		t.Errorf("HandleError calls = %d, want 2", ctx.calls)
	}
	if pings != 1 {
		t.Errorf("pings = %d, want 1", pings)
	}
}

func TestKind_String(t *testing.T) {
	if UnknownProtocol.String() != "unknown_protocol" || Kind(0).String() != "unknown" {
		t.Errorf("unexpected Kind strings: %s %s", UnknownProtocol, Kind(0))
	}
	e := &Error{Kind: DecodeFailed, ProtocolID: 7}
	if e.Error() == "" || errors.Is(e, ErrHandlerFailed) {
		t.Errorf("Error() = %q", e.Error())
	}
}

// strayMessage is a message type the table has never heard of.
type strayMessage struct{}

func (*strayMessage) ProtocolID() uint16         { return 60000 }
func (*strayMessage) Size() int                  { return 0 }
func (*strayMessage) MarshalTo(dst []byte) error { return nil }
func (*strayMessage) Unmarshal(b []byte) error   { return nil }

// impostor claims Ping's id.
type impostor struct{}

func (*impostor) ProtocolID() uint16         { return protocol.PingID }
func (*impostor) Size() int                  { return 0 }
func (*impostor) MarshalTo(dst []byte) error { return nil }
func (*impostor) Unmarshal(b []byte) error   { return nil }
