// Package service implements the attempt lifecycle behind the HTTP API:
// ingestion, analysis trigger, result reconciliation, assessment and the
// reviewer and dashboard queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/trials/internal/adapters/mq/queue"
	"github.com/okian/trials/internal/adapters/mq/worker"
	"github.com/okian/trials/internal/adapters/notify"
	"github.com/okian/trials/internal/adapters/objectstore"
	"github.com/okian/trials/internal/adapters/repository"
	"github.com/okian/trials/internal/domain/dedupe"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
	"github.com/okian/trials/pkg/metrics"
)

const (
	defaultWorkerCount   = 4
	defaultQueueSize     = 1024
	defaultDedupeSize    = 50000
	defaultMaxVideoBytes = 200 << 20
	defaultCommitRetries = 2
	defaultCommitBackoff = 100 * time.Millisecond
	defaultNotifyTimeout = 10 * time.Second
	defaultMaxListLimit  = 100
	shutdownTimeout      = 30 * time.Second
)

// Service wires the stores, the analysis trigger and the result pipeline.
type Service struct {
	mu sync.RWMutex

	store        repository.Store
	objects      objectstore.Store
	notifier     notify.Notifier
	notifierName string
	deduper      dedupe.Deduper
	results      *queue.InMemoryQueue
	pool         *worker.Pool

	workerCount   int
	queueSize     int
	dedupeSize    int
	maxVideoBytes int64
	commitRetries int
	commitBackoff time.Duration
	notifyTimeout time.Duration
	maxListLimit  int

	now   func() time.Time
	newID func() string

	notifying sync.WaitGroup
	started   bool
	closed    bool
	logger    logger.Logger
}

// New builds a service. Unset adapters default to in-memory ones and a
// notifier that drops every message.
func New(opts ...Option) *Service {
	s := &Service{
		notifier:      notify.Nop{},
		notifierName:  "none",
		workerCount:   defaultWorkerCount,
		queueSize:     defaultQueueSize,
		dedupeSize:    defaultDedupeSize,
		maxVideoBytes: defaultMaxVideoBytes,
		commitRetries: defaultCommitRetries,
		commitBackoff: defaultCommitBackoff,
		notifyTimeout: defaultNotifyTimeout,
		maxListLimit:  defaultMaxListLimit,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.objects == nil {
		s.objects = objectstore.NewMemory("")
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.results = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	return s
}

// resultApplier adapts ApplyResult to the worker contract.
type resultApplier struct {
	s *Service
}

func (a resultApplier) ApplyResult(ctx context.Context, id string, o model.Outcome) error {
	_, err := a.s.ApplyResult(ctx, id, o)
	return err
}

// releaseResult forgets the id of a message whose apply failed for a reason
// a redelivery could overcome. Rejected outcomes stay recorded.
func (s *Service) releaseResult(ctx context.Context, m queue.Message, err error) { //nolint:gocritic // hugeParam: queued by value
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidResult) {
		return
	}
	s.deduper.Unrecord(ctx, m.ID)
	s.logger.Warn(ctx, "result released for redelivery",
		logger.String("messageId", m.ID),
		logger.String("attemptId", m.AttemptID),
		logger.Error(err),
	)
}

// Start launches the result workers. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.pool = worker.NewPool(s.workerCount, s.results, resultApplier{s: s},
		worker.WithLogger(s.logger.Named("worker")),
		worker.WithOnFailure(s.releaseResult),
	)
	// Workers outlive the request that started the service.
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "trials service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("notifier", s.notifierName),
	)
	return nil
}

// Shutdown drains queued results, waits for in-flight notifications and
// releases the adapters. The service cannot be restarted afterwards.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.logger.Info(ctx, "stopping trials service...")

	var errs []error
	if s.started {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	} else {
		_ = s.results.Close()
	}

	waited := make(chan struct{})
	go func() {
		s.notifying.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("notifications: %w", ctx.Err()))
	}

	if err := s.notifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close notifier: %w", err))
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}

	s.started = false
	s.closed = true
	s.logger.Info(ctx, "trials service stopped")
	return errors.Join(errs...)
}

// Stop is Shutdown with the default grace period.
func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "unclean shutdown", logger.Error(err))
	}
}

// GetStats returns runtime counters for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	queueLen := s.results.Len(ctx)
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"queueLength": queueLen,
		"dedupeSize":  s.dedupeSize,
		"dedupeUsed":  s.deduper.Size(),
		"notifier":    s.notifierName,
	}
	if s.pool != nil {
		stats["resultsApplied"] = s.pool.Processed()
		stats["resultsFailed"] = s.pool.Failed()
	}
	metrics.UpdateQueueSize(queueLen)
	return stats
}

// storeErr maps repository kinds onto service kinds.
func storeErr(op, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s %s: %w", op, id, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s %s: %w", op, id, ErrInvalidTransition)
	default:
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
}
