package service

import (
	"time"

	"github.com/okian/trials/internal/adapters/notify"
	"github.com/okian/trials/internal/adapters/objectstore"
	"github.com/okian/trials/internal/adapters/repository"
	"github.com/okian/trials/pkg/logger"
)

// Option configures the Service.
type Option func(*Service)

// WithStore sets the attempt and athlete store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithObjectStore sets where videos are uploaded.
func WithObjectStore(store objectstore.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.objects = store
		}
	}
}

// WithNotifier sets the analysis trigger; name labels its metrics.
func WithNotifier(n notify.Notifier, name string) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
			s.notifierName = name
		}
	}
}

// WithWorkerCount sets the number of result workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the result queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the remembered result message ids.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxVideoBytes caps accepted video size.
func WithMaxVideoBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxVideoBytes = n
		}
	}
}

// WithCommitRetries sets how many times record creation is retried after
// a successful upload.
func WithCommitRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.commitRetries = n
		}
	}
}

// WithCommitBackoff sets the pause between record creation retries.
func WithCommitBackoff(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.commitBackoff = d
		}
	}
}

// WithNotifyTimeout bounds one analysis trigger delivery.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithMaxListLimit caps listing page sizes.
func WithMaxListLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxListLimit = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the attempt id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
