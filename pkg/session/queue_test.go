package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spire-dev/spire/pkg/frame"
	"github.com/spire-dev/spire/pkg/wire"
)

func heapFrame(t *testing.T, id uint16) *frame.Outbound {
	t.Helper()
	f, err := frame.EncodeHeap(wire.DefaultCodec, testMessage{id: id})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestOutQueue_FIFO(t *testing.T) {
	q := newOutQueue(0)
	ctx := context.Background()

	for id := uint16(1); id <= 5; id++ {
		if err := q.tryPush(heapFrame(t, id)); err != nil {
			t.Fatalf("tryPush(%d) = %v", id, err)
		}
	}
	for want := uint16(1); want <= 5; want++ {
		f, err := q.pop(ctx)
		if err != nil {
			t.Fatalf("pop() = %v", err)
		}
		if f.ProtocolID() != want {
			t.Errorf("pop() id = %d, want %d", f.ProtocolID(), want)
		}
	}
}

func TestOutQueue_Bounded(t *testing.T) {
	q := newOutQueue(2)
	ctx := context.Background()

	_ = q.tryPush(heapFrame(t, 1))
	_ = q.tryPush(heapFrame(t, 2))
	if err := q.tryPush(heapFrame(t, 3)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("tryPush() on full queue = %v, want ErrQueueFull", err)
	}

	pushed := make(chan error, 1)
	third := heapFrame(t, 3)
	go func() { pushed <- q.push(ctx, third) }()

	select {
	case err := <-pushed:
		t.Fatalf("push() returned %v while the queue was full", err)
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := q.pop(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("push() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("push() did not resume after pop")
	}
	if q.len() != 2 {
		t.Errorf("len() = %d, want 2", q.len())
	}

	full, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := q.push(full, heapFrame(t, 4)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("push() on full queue with deadline = %v", err)
	}
}

func TestOutQueue_BlockedProducersAllResume(t *testing.T) {
	q := newOutQueue(1)
	ctx := context.Background()
	_ = q.tryPush(heapFrame(t, 0))

	const producers = 3
	done := make(chan error, producers)
	for i := 0; i < producers; i++ {
		f := heapFrame(t, uint16(i+1))
		go func() { done <- q.push(ctx, f) }()
	}

	for i := 0; i < producers+1; i++ {
		if _, err := q.pop(ctx); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < producers; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("push() = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("a blocked producer never resumed")
		}
	}
}

func TestOutQueue_Close(t *testing.T) {
	q := newOutQueue(0)
	ctx := context.Background()
	_ = q.tryPush(heapFrame(t, 1))
	_ = q.tryPush(heapFrame(t, 2))

	left := q.close()
	if len(left) != 2 || left[0].ProtocolID() != 1 || left[1].ProtocolID() != 2 {
		t.Fatalf("close() leftovers = %v", left)
	}
	if again := q.close(); again != nil {
		t.Errorf("second close() = %v, want nil", again)
	}

	if _, err := q.pop(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("pop() after close = %v, want ErrQueueClosed", err)
	}
	if err := q.tryPush(heapFrame(t, 3)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("tryPush() after close = %v", err)
	}
	if err := q.push(ctx, heapFrame(t, 3)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("push() after close = %v", err)
	}
}

func TestOutQueue_CloseWakesConsumer(t *testing.T) {
	q := newOutQueue(0)
	errc := make(chan error, 1)
	go func() {
		_, err := q.pop(context.Background())
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("pop() = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pop() not woken by close")
	}
}
