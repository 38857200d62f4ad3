package session

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	"github.com/spire-dev/spire/pkg/frame"
)

// outQueue is the multi-producer single-consumer FIFO between Send and the
// send loop. A zero capacity means unbounded.
//
// Frames handed to push belong to the queue until pop returns them or
// close returns them as leftovers. Exactly one of the two happens.
type outQueue struct {
	mu       sync.Mutex
	items    *queue.Queue
	capacity int
	closed   bool

	// ready and space hold at most one pending wakeup each.
	ready    chan struct{}
	space    chan struct{}
	closedCh chan struct{}
}

func newOutQueue(capacity int) *outQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &outQueue{
		items:    queue.New(),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		space:    make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (q *outQueue) full() bool {
	return q.capacity > 0 && q.items.Length() >= q.capacity
}

// tryPush appends f without blocking.
func (q *outQueue) tryPush(f *frame.Outbound) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.full() {
		return ErrQueueFull
	}
	q.items.Add(f)
	notify(q.ready)
	return nil
}

// push appends f, waiting for room while the queue is full.
func (q *outQueue) push(ctx context.Context, f *frame.Outbound) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrQueueClosed
		}
		if !q.full() {
			q.items.Add(f)
			notify(q.ready)
			// Pass the wakeup on to the next blocked producer.
			if !q.full() {
				notify(q.space)
			}
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.space:
		case <-q.closedCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pop removes the oldest frame, waiting until one is available.
// It returns ErrQueueClosed once the queue is closed, even if frames remain.
func (q *outQueue) pop(ctx context.Context) (*frame.Outbound, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if q.items.Length() > 0 {
			f := q.items.Remove().(*frame.Outbound)
			notify(q.space)
			q.mu.Unlock()
			return f, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.closedCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close rejects further pushes and returns the frames never popped.
// Only the first call returns frames.
func (q *outQueue) close() []*frame.Outbound {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.closedCh)

	left := make([]*frame.Outbound, 0, q.items.Length())
	for q.items.Length() > 0 {
		left = append(left, q.items.Remove().(*frame.Outbound))
	}
	return left
}

func (q *outQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}
