package service

import (
	"time"

	"github.com/okian/comps/internal/adapters/repository"
	"github.com/okian/comps/internal/domain/ranking"
	"github.com/okian/comps/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the record store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRankingConfig sets the base ranking configuration that per-request
// overrides apply to.
func WithRankingConfig(cfg ranking.Config) Option {
	return func(s *Service) {
		s.base = cfg
	}
}

// WithWorkerCount sets the number of job workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the job queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithScoringConcurrency sets how many candidates one request scores in parallel.
func WithScoringConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scoringConcurrency = n
		}
	}
}

// WithDedupeTTL sets the job-id idempotency window.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithCacheTTL sets the score cache TTL. Zero disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithResultTTL sets how long finished job results are kept.
func WithResultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resultTTL = ttl
		}
	}
}

// WithCandidatePool sets how many candidates are fetched per target and the
// same-county count below which other counties fill the pool.
func WithCandidatePool(size, minSameCounty int) Option {
	return func(s *Service) {
		if size > 0 {
			s.poolSize = size
		}
		if minSameCounty >= 0 {
			s.minSameCounty = minSameCounty
		}
	}
}

// WithMaxPoolSize caps inline candidate pools.
func WithMaxPoolSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPoolSize = n
		}
	}
}

// WithCounties sets the supported county catalogue.
func WithCounties(counties []string) Option {
	return func(s *Service) {
		s.counties = append([]string(nil), counties...)
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
