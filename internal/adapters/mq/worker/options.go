package worker

import (
	"context"
	"time"

	"github.com/okian/trials/internal/adapters/mq/queue"
	"github.com/okian/trials/pkg/logger"
)

// Option configures an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName names the worker in logs.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the worker's logger.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithApplyTimeout bounds a single ApplyResult call.
func WithApplyTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.applyTimeout = d
		}
	}
}

// WithOnFailure registers fn to run after a message fails to apply.
func WithOnFailure(fn func(ctx context.Context, m queue.Message, err error)) Option {
	return func(w *InMemoryWorker) {
		w.onFailure = fn
	}
}
