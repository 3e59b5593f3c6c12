package service

import (
	"time"

	"github.com/okian/judgeflow/internal/adapters/notify"
	"github.com/okian/judgeflow/internal/adapters/repository"
	"github.com/okian/judgeflow/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to an empty memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sets where committed plans are announced.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithWorkerCount sets the number of floor shards.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the per-shard job queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize caps remembered request ids; <= 0 is unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithDedupeTTL sets how long a request id counts as seen.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithGenerateTimeout bounds how long Generate waits for its shard.
func WithGenerateTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.generateTimeout = timeout
	}
}

// WithBlockSize sets the number of teams per assignment.
func WithBlockSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.blockSize = size
		}
	}
}

// WithClosenessCap sets the strict-pass number spread limit.
func WithClosenessCap(limit int) Option {
	return func(s *Service) {
		if limit >= 0 {
			s.closenessCap = limit
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
