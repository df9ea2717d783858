package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/trials/internal/domain/model"
)

func msg(id string) Message {
	return Message{ID: id, AttemptID: "attempt-" + id, Outcome: model.Outcome{Success: true}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, msg("m1")) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != "m1" || got.AttemptID != "attempt-m1" {
		t.Errorf("unexpected message %+v", got)
	}
	if got.ReceivedAt.IsZero() {
		t.Error("expected ReceivedAt to be stamped on enqueue")
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, msg("m1")) || !q.Enqueue(ctx, msg("m2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, msg("m3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_BufferNeverBelowCapacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4), WithBufferSize(1))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if !q.Enqueue(ctx, msg(fmt.Sprint(i))) {
			t.Fatalf("enqueue %d refused below capacity", i)
		}
	}
}

func TestInMemoryQueue_CancelledConsumer(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	out := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected no message after cancel")
		}
	case <-time.After(time.Second):
		t.Error("expected dequeue channel to close after cancel")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	const producers, perProducer = 10, 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for !q.Enqueue(ctx, msg(fmt.Sprintf("%d_%d", id, j))) {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	seen := make(chan string, producers*perProducer)
	for i := 0; i < 4; i++ {
		go func() {
			for m := range q.Dequeue(ctx) {
				seen <- m.ID
			}
		}()
	}

	wg.Wait()
	ids := make(map[string]struct{})
	timeout := time.After(5 * time.Second)
	for len(ids) < producers*perProducer {
		select {
		case id := <-seen:
			ids[id] = struct{}{}
		case <-timeout:
			t.Fatalf("consumed %d of %d messages", len(ids), producers*perProducer)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, msg("m1")) || !q.Enqueue(ctx, msg("m2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, msg("m3")) {
		t.Error("expected enqueue to fail after closing")
	}

	// Buffered messages drain before the channel closes.
	var drained []string
	timeout := time.After(time.Second)
	out := q.Dequeue(ctx)
	for {
		select {
		case m, ok := <-out:
			if !ok {
				if len(drained) != 2 {
					t.Errorf("expected 2 drained messages, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got %v", err)
				}
				return
			}
			drained = append(drained, m.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to close within timeout")
		}
	}
}
