// Package worker applies queued analysis outcomes to their attempts.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/trials/internal/adapters/mq/queue"
	"github.com/okian/trials/internal/domain/model"
	"github.com/okian/trials/pkg/logger"
	"github.com/okian/trials/pkg/metrics"
)

const (
	defaultApplyTimeout   = 10 * time.Second
	metricsUpdateInterval = 5 * time.Second
	workerStopTimeout     = 5 * time.Second
)

// Applier writes one outcome into the attempt store.
type Applier interface {
	ApplyResult(ctx context.Context, attemptID string, outcome model.Outcome) error
}

// Queue is where workers read messages from.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Message
}

// Worker consumes messages until its queue closes or it is stopped.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker applies messages one at a time.
type InMemoryWorker struct {
	queue        Queue
	applier      Applier
	name         string
	applyTimeout time.Duration
	onFailure    func(ctx context.Context, m queue.Message, err error)

	busy      *atomic.Int64
	processed *atomic.Int64
	failed    *atomic.Int64

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// Compile-time interface check.
var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a worker reading q and writing through a.
func NewInMemoryWorker(q Queue, a Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:        q,
		applier:      a,
		name:         "worker",
		applyTimeout: defaultApplyTimeout,
		busy:         new(atomic.Int64),
		processed:    new(atomic.Int64),
		failed:       new(atomic.Int64),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run blocks until ctx is done, the worker is stopped, or the queue drains
// after close.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	messages := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			// Apply errors are logged and counted, never propagated.
			_ = w.process(ctx, m)
		}
	}
}

// Shutdown stops the worker without draining and waits for it to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(ctx context.Context, m queue.Message) error { //nolint:gocritic // hugeParam: channel value
	start := time.Now()
	w.busy.Add(1)
	defer func() {
		w.busy.Add(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	actx, cancel := context.WithTimeout(ctx, w.applyTimeout)
	defer cancel()

	if err := w.applier.ApplyResult(actx, m.AttemptID, m.Outcome); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError("apply")
		metrics.RecordErrorByComponent("worker", "apply_error")
		w.logger.Error(ctx, "failed to apply result",
			logger.String("messageID", m.ID),
			logger.String("attemptID", m.AttemptID),
			logger.Error(err),
		)
		if w.onFailure != nil {
			w.onFailure(ctx, m, err)
		}
		return fmt.Errorf("apply %s to %s: %w", m.ID, m.AttemptID, err)
	}

	w.processed.Add(1)
	w.logger.Debug(ctx, "result applied",
		logger.String("messageID", m.ID),
		logger.String("attemptID", m.AttemptID),
		logger.Any("success", m.Outcome.Success),
	)
	return nil
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	busy      atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	stopOnce sync.Once
	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates workerCount workers; fewer than one means one per CPU.
func NewPool(workerCount int, q Queue, a Applier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
	}
	for i := range p.workers {
		w := NewInMemoryWorker(q, a, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.busy, w.processed, w.failed = &p.busy, &p.processed, &p.failed
		p.workers[i] = w
	}
	p.logger = p.workers[0].logger.Named("pool")

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return p
}

// Start launches every worker and the metrics updater.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	busy := int(p.busy.Load())
	metrics.UpdateWorkerActiveCount(busy)
	metrics.UpdateWorkerIdleCount(len(p.workers) - busy)
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many messages were applied successfully.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns how many messages could not be applied.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Stop halts every worker without draining the queue.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.shutdown) })
	for _, w := range p.workers {
		w.stop()
		select {
		case <-w.done:
		case <-time.After(workerStopTimeout):
			p.logger.Warn(context.Background(), "worker did not stop in time", logger.String("worker", w.name))
		}
	}
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx ends are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	defer p.stopOnce.Do(func() { close(p.shutdown) })

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "drain timed out", logger.Int("worker_id", i))
			p.Stop()
			return fmt.Errorf("drain: %w", ctx.Err())
		}
	}
	return nil
}
