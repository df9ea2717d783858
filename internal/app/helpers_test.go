package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/trials/internal/adapters/notify"
	"github.com/okian/trials/internal/adapters/objectstore"
	"github.com/okian/trials/internal/adapters/repository"
	service "github.com/okian/trials/internal/app"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// clock advances one second per call so creation order is observable.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type ids struct {
	mu sync.Mutex
	n  int
}

func (g *ids) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("att-%d", g.n)
}

type recordingNotifier struct {
	ch  chan notify.Message
	err error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan notify.Message, 32)}
}

func (n *recordingNotifier) Notify(_ context.Context, m notify.Message) error {
	n.ch <- m
	return n.err
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) next() (notify.Message, bool) {
	select {
	case m := <-n.ch:
		return m, true
	case <-time.After(2 * time.Second):
		return notify.Message{}, false
	}
}

type brokenObjects struct{}

func (brokenObjects) Upload(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

// flakyStore fails the next failCreates CreateAttempt calls and the next
// failPatches PatchAttempt calls.
type flakyStore struct {
	repository.Store
	mu          sync.Mutex
	failCreates int
	failPatches int
}

func (f *flakyStore) failNextPatches(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPatches = n
}

func (f *flakyStore) PatchAttempt(ctx context.Context, id string, p model.AttemptPatch) (model.TestAttempt, error) {
	f.mu.Lock()
	if f.failPatches > 0 {
		f.failPatches--
		f.mu.Unlock()
		return model.TestAttempt{}, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Store.PatchAttempt(ctx, id, p)
}

func (f *flakyStore) CreateAttempt(ctx context.Context, a model.TestAttempt) error {
	f.mu.Lock()
	if f.failCreates > 0 {
		f.failCreates--
		f.mu.Unlock()
		return errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Store.CreateAttempt(ctx, a)
}

type fixture struct {
	svc      *service.Service
	store    *flakyStore
	objects  *objectstore.Memory
	notifier *recordingNotifier
	clock    *clock
}

func newFixture(opts ...service.Option) *fixture {
	f := &fixture{
		store:    &flakyStore{Store: repository.NewMemoryStore()},
		objects:  objectstore.NewMemory("http://cdn.test/videos"),
		notifier: newRecordingNotifier(),
		clock:    &clock{t: base},
	}
	gen := &ids{}
	all := append([]service.Option{
		service.WithStore(f.store),
		service.WithObjectStore(f.objects),
		service.WithNotifier(f.notifier, "test"),
		service.WithLogger(logger.NewNop()),
		service.WithClock(f.clock.now),
		service.WithIDGenerator(gen.next),
		service.WithCommitBackoff(0),
	}, opts...)
	f.svc = service.New(all...)
	return f
}

func (f *fixture) athlete(id, clerkID, name string) {
	_, err := f.svc.PutAthlete(context.Background(), model.AthleteProfile{ID: id, ClerkID: clerkID, Name: name})
	if err != nil {
		panic(err)
	}
}

// seed stores an attempt directly, bypassing ingestion.
func (f *fixture) seed(a model.TestAttempt) model.TestAttempt {
	if a.Status == "" {
		a.Status = model.StatusInProgress
	}
	if a.TestType == "" {
		a.TestType = model.TestSitUps
	}
	if a.VideoURL == "" {
		a.VideoURL = "http://cdn.test/videos/" + a.ID + ".mp4"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = f.clock.now()
	}
	if err := f.store.Store.CreateAttempt(context.Background(), a); err != nil {
		panic(err)
	}
	return a
}

func ptr[T any](v T) *T { return &v }
