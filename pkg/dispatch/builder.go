package dispatch

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/spire-dev/spire/pkg/wire"
)

// Context is the per-session state handlers receive. The registry reports
// every failed dispatch to it and never to its caller.
type Context interface {
	HandleError(err *Error)
}

// Table resolves protocol ids to fresh messages. protocol.Table satisfies it.
type Table interface {
	New(id uint16) (wire.Message, bool)
	Name(id uint16) string
}

var (
	messageType     = reflect.TypeOf((*wire.Message)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*wire.Unmarshaler)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

type invokeFunc[C Context] func(ctx C, msg wire.Message) error

type decl[C Context] struct {
	source  string
	msgType reflect.Type
	invoke  invokeFunc[C]
	fn      any
}

// Builder collects handler declarations. Nothing is validated until Build.
type Builder[C Context] struct {
	table Table
	decls []decl[C]
}

// NewBuilder starts a registry over table.
func NewBuilder[C Context](table Table) *Builder[C] {
	return &Builder[C]{table: table}
}

// Handle declares fn as the handler for message type M.
func Handle[C Context, M wire.Message](b *Builder[C], fn func(C, M) error) {
	d := decl[C]{
		source:  funcName(fn),
		msgType: reflect.TypeOf((*M)(nil)).Elem(),
	}
	if fn != nil {
		d.invoke = func(ctx C, msg wire.Message) error {
			return fn(ctx, msg.(M))
		}
	}
	b.decls = append(b.decls, d)
}

// HandleFunc declares a handler whose shape is checked at Build. fn must be
// a func(C', M) or func(C', M) error where C is assignable to C' and M is a
// decodable message type.
func (b *Builder[C]) HandleFunc(fn any) {
	b.decls = append(b.decls, decl[C]{source: funcName(fn), fn: fn})
}

// Build validates every declaration and returns the immutable registry.
// The first invalid declaration aborts with a *RegistrationError.
func (b *Builder[C]) Build(opts ...Option) (*Registry[C], error) {
	if b.table == nil {
		return nil, &RegistrationError{Handler: "<builder>", Reason: "nil table"}
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	entries := make(map[uint16]*entry[C], len(b.decls))
	for _, d := range b.decls {
		if d.fn != nil {
			var err error
			if d, err = reflectDecl[C](d); err != nil {
				return nil, err
			}
		}
		if d.invoke == nil {
			return nil, &RegistrationError{Handler: d.source, Reason: "nil handler"}
		}

		id, err := b.resolve(d)
		if err != nil {
			return nil, err
		}
		if prev, dup := entries[id]; dup {
			return nil, &RegistrationError{
				Handler:    d.source,
				ProtocolID: id,
				Reason:     fmt.Sprintf("duplicate handler, already bound to %s", prev.source),
			}
		}
		entries[id] = &entry[C]{
			id:     id,
			name:   b.table.Name(id),
			source: d.source,
			invoke: d.invoke,
		}
	}

	return &Registry[C]{
		table:    b.table,
		entries:  entries,
		logger:   o.logger,
		tracer:   o.tracer,
		observer: o.observer,
	}, nil
}

// resolve finds the protocol id of d's message type and checks that the
// table decodes that id into the same type.
func (b *Builder[C]) resolve(d decl[C]) (uint16, error) {
	if d.msgType.Kind() == reflect.Interface {
		return 0, &RegistrationError{Handler: d.source, Reason: fmt.Sprintf("message type %s is an interface", d.msgType)}
	}

	var probe wire.Message
	if d.msgType.Kind() == reflect.Pointer {
		probe = reflect.New(d.msgType.Elem()).Interface().(wire.Message)
	} else {
		probe = reflect.Zero(d.msgType).Interface().(wire.Message)
	}
	id := probe.ProtocolID()

	proto, ok := b.table.New(id)
	if !ok {
		return id, &RegistrationError{Handler: d.source, ProtocolID: id, Reason: fmt.Sprintf("%s is not in the protocol table", d.msgType)}
	}
	if got := reflect.TypeOf(proto); got != d.msgType {
		return id, &RegistrationError{Handler: d.source, ProtocolID: id, Reason: fmt.Sprintf("table decodes id as %s, handler takes %s", got, d.msgType)}
	}
	if !d.msgType.Implements(unmarshalerType) {
		return id, &RegistrationError{Handler: d.source, ProtocolID: id, Reason: fmt.Sprintf("%s is not decodable", d.msgType)}
	}
	return id, nil
}

// reflectDecl checks the shape of a HandleFunc declaration and builds its
// invoke function.
func reflectDecl[C Context](d decl[C]) (decl[C], error) {
	v := reflect.ValueOf(d.fn)
	t := v.Type()
	fail := func(reason string) (decl[C], error) {
		return d, &RegistrationError{Handler: d.source, Reason: reason}
	}

	if t.Kind() != reflect.Func {
		return fail(fmt.Sprintf("handler is %s, want func", t))
	}
	if t.IsVariadic() || t.NumIn() != 2 {
		return fail(fmt.Sprintf("handler takes %d parameters, want (context, message)", t.NumIn()))
	}
	ctxType := reflect.TypeOf((*C)(nil)).Elem()
	if !ctxType.AssignableTo(t.In(0)) {
		return fail(fmt.Sprintf("first parameter %s does not accept %s", t.In(0), ctxType))
	}
	if !t.In(1).Implements(messageType) {
		return fail(fmt.Sprintf("second parameter %s is not a message", t.In(1)))
	}
	switch {
	case t.NumOut() == 0:
	case t.NumOut() == 1 && t.Out(0) == errorType:
	default:
		return fail("handler must return nothing or error")
	}

	d.msgType = t.In(1)
	hasErr := t.NumOut() == 1
	d.invoke = func(ctx C, msg wire.Message) error {
		out := v.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem(), reflect.ValueOf(msg)})
		if hasErr && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}
	return d, nil
}

func funcName(fn any) string {
	if fn == nil {
		return "<nil>"
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("<%T>", fn)
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return v.Type().String()
}
