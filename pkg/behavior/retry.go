package behavior

import (
	"context"

	"github.com/spire-dev/spire/pkg/lifecycle"
)

type retry[C any] struct {
	child    Node[C]
	attempts int
	backoff  func() *lifecycle.Backoff
}

// Retry reruns child while it fails, at most attempts times in total,
// waiting between runs with a fresh backoff from newBackoff. Errors are not
// retried.
func Retry[C any](child Node[C], attempts int, newBackoff func() *lifecycle.Backoff) Node[C] {
	if attempts < 1 {
		attempts = 1
	}
	return &retry[C]{child: child, attempts: attempts, backoff: newBackoff}
}

func (r *retry[C]) Run(ctx context.Context, c C) (Status, error) {
	var b *lifecycle.Backoff
	for i := 0; ; i++ {
		st, err := r.child.Run(ctx, c)
		if err != nil || st == Success || i+1 >= r.attempts {
			return st, err
		}
		if b == nil && r.backoff != nil {
			b = r.backoff()
		}
		if b != nil {
			if err := b.Wait(ctx); err != nil {
				return Failure, err
			}
		}
	}
}
