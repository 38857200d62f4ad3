package protocol

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spire-dev/spire/pkg/wire"
)

// ErrUnknownID is returned by Decode for ids not in the table.
var ErrUnknownID = errors.New("protocol: unknown id")

// Category groups message types under a base id.
type Category struct {
	Name   string
	Offset uint16
}

// Type describes one message type in the table.
type Type struct {
	ID       uint16
	Name     string
	Category string

	new func() wire.Message
}

// New returns a fresh zero message of this type.
func (t Type) New() wire.Message { return t.new() }

var byID = func() map[uint16]Type {
	m := make(map[uint16]Type, len(types))
	for _, t := range types {
		if _, dup := m[t.ID]; dup {
			panic(fmt.Sprintf("protocol: duplicate id %d", t.ID))
		}
		m[t.ID] = t
	}
	return m
}()

// Lookup returns the type registered for id.
func Lookup(id uint16) (Type, bool) {
	t, ok := byID[id]
	return t, ok
}

// New returns a zero message for id.
func New(id uint16) (wire.Message, bool) {
	t, ok := byID[id]
	if !ok {
		return nil, false
	}
	return t.new(), true
}

// Name returns the message name for id, or "" when unknown.
func Name(id uint16) string {
	return byID[id].Name
}

// Decode parses b as the message registered for id.
func Decode(id uint16, b []byte) (wire.Message, error) {
	t, ok := byID[id]
	if !ok {
		return nil, &wire.DecodeError{ProtocolID: id, Err: ErrUnknownID}
	}
	msg := t.new()
	u, ok := msg.(wire.Unmarshaler)
	if !ok {
		return nil, &wire.DecodeError{ProtocolID: id, Err: fmt.Errorf("%s is not decodable", t.Name)}
	}
	if err := u.Unmarshal(b); err != nil {
		return nil, &wire.DecodeError{ProtocolID: id, Err: malformed(err)}
	}
	return msg, nil
}

// Types returns every registered type ordered by id.
func Types() []Type {
	out := make([]Type, len(types))
	copy(out, types)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Categories returns the categories ordered by offset.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Registry exposes the table to the dispatcher.
type Registry struct{}

// Table is the generated id table.
var Table Registry

// New returns a zero message for id.
func (Registry) New(id uint16) (wire.Message, bool) { return New(id) }

// Name returns the message name for id.
func (Registry) Name(id uint16) string { return Name(id) }
