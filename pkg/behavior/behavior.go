package behavior

import (
	"context"
	"fmt"
)

// Status is the outcome of running a node.
type Status int

const (
	Success Status = iota
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Node is one step of a tree run against a context of type C.
// A non-nil error aborts the whole tree; Failure is an ordinary outcome.
type Node[C any] interface {
	Run(ctx context.Context, c C) (Status, error)
}

// Func adapts a function to Node.
type Func[C any] func(ctx context.Context, c C) (Status, error)

func (f Func[C]) Run(ctx context.Context, c C) (Status, error) { return f(ctx, c) }

// Action wraps fn as a leaf. fn returning nil means Success; an error
// aborts the tree.
func Action[C any](fn func(ctx context.Context, c C) error) Node[C] {
	return Func[C](func(ctx context.Context, c C) (Status, error) {
		if err := fn(ctx, c); err != nil {
			return Failure, err
		}
		return Success, nil
	})
}

// Condition succeeds when fn reports true.
func Condition[C any](fn func(ctx context.Context, c C) (bool, error)) Node[C] {
	return Func[C](func(ctx context.Context, c C) (Status, error) {
		ok, err := fn(ctx, c)
		if err != nil {
			return Failure, err
		}
		if ok {
			return Success, nil
		}
		return Failure, nil
	})
}

type sequence[C any] []Node[C]

// Sequence runs children in order and stops at the first one that does not
// succeed.
func Sequence[C any](children ...Node[C]) Node[C] {
	return sequence[C](children)
}

func (s sequence[C]) Run(ctx context.Context, c C) (Status, error) {
	for _, n := range s {
		if err := ctx.Err(); err != nil {
			return Failure, err
		}
		st, err := n.Run(ctx, c)
		if err != nil || st == Failure {
			return Failure, err
		}
	}
	return Success, nil
}

type selector[C any] []Node[C]

// Selector runs children in order until one succeeds.
func Selector[C any](children ...Node[C]) Node[C] {
	return selector[C](children)
}

func (s selector[C]) Run(ctx context.Context, c C) (Status, error) {
	for _, n := range s {
		if err := ctx.Err(); err != nil {
			return Failure, err
		}
		st, err := n.Run(ctx, c)
		if err != nil {
			return Failure, err
		}
		if st == Success {
			return Success, nil
		}
	}
	return Failure, nil
}
