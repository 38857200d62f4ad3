package behavior

import (
	"context"
	"fmt"
	"sync"
)

// Mode runs the node registered for its current mode, then lets transit
// choose the next mode from the result.
type Mode[C any, M comparable] struct {
	mu      sync.Mutex
	current M
	modes   map[M]Node[C]
	transit func(current M, result Status) M
}

// NewMode creates a Mode starting in initial.
func NewMode[C any, M comparable](initial M, modes map[M]Node[C], transit func(M, Status) M) *Mode[C, M] {
	return &Mode[C, M]{current: initial, modes: modes, transit: transit}
}

// Current returns the mode the next Run will use.
func (m *Mode[C, M]) Current() M {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Mode[C, M]) Run(ctx context.Context, c C) (Status, error) {
	m.mu.Lock()
	mode := m.current
	m.mu.Unlock()

	n, ok := m.modes[mode]
	if !ok {
		return Failure, fmt.Errorf("behavior: no node for mode %v", mode)
	}
	st, err := n.Run(ctx, c)
	if err != nil {
		return st, err
	}

	if m.transit != nil {
		m.mu.Lock()
		m.current = m.transit(mode, st)
		m.mu.Unlock()
	}
	return st, nil
}
