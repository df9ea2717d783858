package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/trials/internal/adapters/mq/queue"
	"github.com/okian/trials/internal/adapters/mq/worker"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan queue.Message
}

func newMockQueue() *mockQueue { return &mockQueue{ch: make(chan queue.Message, 16)} }

func (q *mockQueue) Dequeue(context.Context) <-chan queue.Message { return q.ch }

func (q *mockQueue) Close() error {
	close(q.ch)
	return nil
}

type mockApplier struct {
	mu      sync.Mutex
	applied map[string]model.Outcome
	fail    map[string]error
	delay   time.Duration
}

func newMockApplier() *mockApplier {
	return &mockApplier{applied: map[string]model.Outcome{}, fail: map[string]error{}}
}

func (a *mockApplier) ApplyResult(ctx context.Context, id string, o model.Outcome) error {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.fail[id]; err != nil {
		return err
	}
	a.applied[id] = o
	return nil
}

func (a *mockApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker over a mock queue", t, func() {
		q := newMockQueue()
		a := newMockApplier()
		w := worker.NewInMemoryWorker(q, a, worker.WithLogger(logger.NewNop()), worker.WithName("w0"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		Convey("Messages are applied in order until the queue closes", func() {
			q.ch <- queue.Message{ID: "m1", AttemptID: "a1", Outcome: model.Outcome{Success: true}}
			q.ch <- queue.Message{ID: "m2", AttemptID: "a2", Outcome: model.Outcome{Error: "boom"}}
			_ = q.Close()

			w.Run(ctx)

			So(a.count(), ShouldEqual, 2)
			So(a.applied["a1"].Success, ShouldBeTrue)
			So(a.applied["a2"].Error, ShouldEqual, "boom")
		})

		Convey("Apply errors do not stop the worker", func() {
			a.fail["a1"] = errors.New("conflict")
			q.ch <- queue.Message{ID: "m1", AttemptID: "a1"}
			q.ch <- queue.Message{ID: "m2", AttemptID: "a2"}
			_ = q.Close()

			w.Run(ctx)

			So(a.count(), ShouldEqual, 1)
			_, ok := a.applied["a2"]
			So(ok, ShouldBeTrue)
		})

		Convey("Shutdown stops an idle worker", func() {
			go w.Run(ctx)
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			So(w.Shutdown(sctx), ShouldBeNil)
		})

		Convey("Cancelling the context stops the worker", func() {
			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()
			cancel()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("worker did not stop on cancel")
			}
		})
	})
}

func TestApplyTimeout(t *testing.T) {
	Convey("Given a slow applier and a short apply timeout", t, func() {
		q := newMockQueue()
		a := newMockApplier()
		a.delay = time.Second
		w := worker.NewInMemoryWorker(q, a,
			worker.WithLogger(logger.NewNop()),
			worker.WithApplyTimeout(10*time.Millisecond),
		)

		Convey("The apply is abandoned and the worker moves on", func() {
			q.ch <- queue.Message{ID: "m1", AttemptID: "a1"}
			_ = q.Close()
			start := time.Now()
			w.Run(context.Background())
			So(time.Since(start), ShouldBeLessThan, 500*time.Millisecond)
			So(a.count(), ShouldEqual, 0)
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		a := newMockApplier()
		a.fail["bad"] = errors.New("invalid transition")
		p := worker.NewPool(4, q, a, worker.WithLogger(logger.NewNop()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		Convey("Shutdown drains every buffered message", func() {
			for i := 0; i < 100; i++ {
				So(q.Enqueue(ctx, queue.Message{ID: fmt.Sprint(i), AttemptID: fmt.Sprintf("a%d", i)}), ShouldBeTrue)
			}
			So(q.Enqueue(ctx, queue.Message{ID: "x", AttemptID: "bad"}), ShouldBeTrue)

			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			So(p.Shutdown(sctx), ShouldBeNil)

			So(a.count(), ShouldEqual, 100)
			So(p.Processed(), ShouldEqual, 100)
			So(p.Failed(), ShouldEqual, 1)
			So(p.Size(), ShouldEqual, 4)
			So(q.IsClosed(), ShouldBeTrue)
		})

		Convey("Stop halts the workers", func() {
			p.Stop()
			So(q.IsClosed(), ShouldBeFalse)
		})
	})

	Convey("A non-positive worker count still yields workers", t, func() {
		p := worker.NewPool(0, newMockQueue(), newMockApplier(), worker.WithLogger(logger.NewNop()))
		So(p.Size(), ShouldBeGreaterThan, 0)
	})
}

func TestOnFailure(t *testing.T) {
	Convey("Given a worker with a failure callback", t, func() {
		q := newMockQueue()
		a := newMockApplier()
		boom := errors.New("connection reset")
		a.fail["a1"] = boom

		var failed []string
		var got error
		w := worker.NewInMemoryWorker(q, a,
			worker.WithLogger(logger.NewNop()),
			worker.WithOnFailure(func(_ context.Context, m queue.Message, err error) {
				failed = append(failed, m.ID)
				got = err
			}),
		)

		Convey("Only failed messages reach the callback, with their error", func() {
			q.ch <- queue.Message{ID: "m1", AttemptID: "a1"}
			q.ch <- queue.Message{ID: "m2", AttemptID: "a2"}
			_ = q.Close()
			w.Run(context.Background())

			So(failed, ShouldResemble, []string{"m1"})
			So(errors.Is(got, boom), ShouldBeTrue)
		})
	})
}
