// Package service wires the record store, the ranking engine, the score
// cache and the job pipeline into the operations the HTTP API and the CLI
// call.
package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/okian/comps/internal/adapters/cache"
	jobqueue "github.com/okian/comps/internal/adapters/mq/queue"
	workerpool "github.com/okian/comps/internal/adapters/mq/worker"
	"github.com/okian/comps/internal/adapters/repository"
	"github.com/okian/comps/internal/domain/dedupe"
	"github.com/okian/comps/internal/domain/market"
	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/ranking"
	"github.com/okian/comps/pkg/logger"
	"github.com/okian/comps/pkg/metrics"
)

// Default service configuration.
const (
	DefaultQueueSize     = 10000
	DefaultDedupeTTL     = time.Hour
	DefaultCacheTTL      = 15 * time.Minute
	DefaultResultTTL     = time.Hour
	DefaultPoolSize      = 50
	DefaultMinSameCounty = 20
	DefaultMaxPoolSize   = 5000
)

// DefaultCounties is the supported county catalogue.
var DefaultCounties = []string{"cook", "dallas", "los_angeles"}

// ComparablesRequest asks for comparables of Target. With Candidates set
// the inline pool is ranked, otherwise the pool comes from the store.
type ComparablesRequest struct {
	Target     *model.PropertyRecord   `json:"target"`
	Candidates []*model.PropertyRecord `json:"candidates,omitempty"`
	Config     *ranking.Overrides      `json:"config,omitempty"`
}

// ComparablesResponse is a ranking result with market context.
type ComparablesResponse struct {
	*ranking.Response
	Analysis    market.Analysis `json:"analysis"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// DataStats summarizes the record store.
type DataStats struct {
	TotalProperties int            `json:"total_properties"`
	ByCounty        map[string]int `json:"by_county"`
}

// Service implements the API dependencies for comparable discovery.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	engine  *ranking.Engine
	scores  cache.ScoreCache
	deduper dedupe.Deduper
	jobs    *cache.Results[JobState]
	queue   *jobqueue.InMemoryQueue
	pool    *workerpool.Pool

	base               ranking.Config
	workerCount        int
	queueSize          int
	scoringConcurrency int
	dedupeTTL          time.Duration
	cacheTTL           time.Duration
	resultTTL          time.Duration
	poolSize           int
	minSameCounty      int
	maxPoolSize        int
	counties           []string

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Ranking is usable immediately; jobs need Start.
func New(opts ...Option) *Service {
	s := &Service{
		base:               ranking.DefaultConfig(),
		workerCount:        runtime.NumCPU(),
		queueSize:          DefaultQueueSize,
		scoringConcurrency: runtime.NumCPU(),
		dedupeTTL:          DefaultDedupeTTL,
		cacheTTL:           DefaultCacheTTL,
		resultTTL:          DefaultResultTTL,
		poolSize:           DefaultPoolSize,
		minSameCounty:      DefaultMinSameCounty,
		maxPoolSize:        DefaultMaxPoolSize,
		counties:           DefaultCounties,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	engineOpts := []ranking.Option{ranking.WithConcurrency(s.scoringConcurrency)}
	if s.cacheTTL > 0 {
		s.scores = cache.NewScoreCache(cache.WithScoreTTL(s.cacheTTL))
		engineOpts = append(engineOpts, ranking.WithCache(s.scores))
	}
	s.engine = ranking.New(engineOpts...)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithTTL(s.dedupeTTL))
	s.jobs = cache.NewResults[JobState](s.resultTTL)

	return s
}

// Start launches the job queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.base.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting comparables service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "comparables service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("scoreCache", s.scores != nil),
	)
	return nil
}

// Stop drains pending jobs, stops the workers and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	if !s.started {
		_ = s.store.Close()
		return
	}

	s.logger.Info(ctx, "stopping comparables service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "comparables service stopped")
}

// Config returns the base ranking configuration.
func (s *Service) Config() ranking.Config {
	return s.base
}

// Comparables ranks a pool for req.Target and attaches market analysis.
// The target is caller-supplied, so its scores never touch the score cache.
func (s *Service) Comparables(ctx context.Context, req ComparablesRequest) (*ComparablesResponse, error) {
	return s.comparables(ctx, req, false)
}

// ComparablesByID ranks stored candidates for the stored target id.
func (s *Service) ComparablesByID(ctx context.Context, id string, overrides *ranking.Overrides) (*ComparablesResponse, error) {
	target, err := s.store.Get(ctx, id)
	if err != nil {
		metrics.RecordRankRejected("target_not_found")
		return nil, err
	}
	return s.comparables(ctx, ComparablesRequest{Target: target, Config: overrides}, true)
}

// comparables uses the score cache only when both the target and the pool
// come from the store, since cache keys identify records by id.
func (s *Service) comparables(ctx context.Context, req ComparablesRequest, storedTarget bool) (*ComparablesResponse, error) {
	if req.Target == nil {
		metrics.RecordRankRejected("invalid")
		return nil, ranking.ValidateRequest(ranking.Request{})
	}

	inline := req.Candidates != nil
	pool := req.Candidates
	if inline {
		if len(pool) > s.maxPoolSize {
			metrics.RecordRankRejected("pool_too_large")
			return nil, ErrPoolTooLarge
		}
	} else {
		var err error
		pool, err = s.store.Candidates(ctx, req.Target, s.poolSize, s.minSameCounty)
		if err != nil {
			metrics.RecordRankRejected("store_error")
			return nil, err
		}
	}

	return s.rank(ctx, ranking.Request{
		Target:    req.Target,
		Pool:      pool,
		Config:    req.Config.Apply(s.base),
		SkipCache: inline || !storedTarget,
	})
}

func (s *Service) rank(ctx context.Context, req ranking.Request) (*ComparablesResponse, error) {
	start := time.Now()
	resp, err := s.engine.Rank(ctx, req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		outcome := "error"
		if errors.Is(err, ranking.ErrInvalidRequest) {
			outcome = "invalid"
		} else if ctx.Err() != nil {
			outcome = "cancelled"
		}
		metrics.RecordRankRejected(outcome)
		return nil, err
	}

	metrics.RecordRank("ok", latency, resp.Stats.Scored, resp.Count)
	for flag, n := range resp.Stats.Outliers {
		metrics.RecordOutliers(string(flag), n)
	}
	if !req.SkipCache && s.scores != nil {
		metrics.RecordScoreCache(resp.Stats.CacheHits, resp.Stats.Scored-resp.Stats.CacheHits)
	}
	s.logger.Debug(ctx, "ranked comparables",
		logger.String("target", req.Target.ID),
		logger.Int("pool", resp.Stats.Scored),
		logger.Int("returned", resp.Count),
		logger.Int("cacheHits", resp.Stats.CacheHits),
		logger.Float64("latencyMs", latency),
	)

	return &ComparablesResponse{
		Response:    resp,
		Analysis:    market.Analyze(resp.Target, resp.Comparables),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Property returns a stored record.
func (s *Service) Property(ctx context.Context, id string) (*model.PropertyRecord, error) {
	return s.store.Get(ctx, id)
}

// Search returns stored records matching f.
func (s *Service) Search(ctx context.Context, f repository.Filter) ([]*model.PropertyRecord, error) {
	return s.store.Search(ctx, f)
}

// Counties returns the supported county catalogue.
func (s *Service) Counties() []string {
	return append([]string(nil), s.counties...)
}

// DataStats counts stored records per county.
func (s *Service) DataStats(ctx context.Context) (DataStats, error) {
	counts, err := s.store.CountByCounty(ctx)
	if err != nil {
		return DataStats{}, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	metrics.UpdateStoreRecords(total)
	return DataStats{TotalProperties: total, ByCounty: counts}, nil
}

// Upsert writes records and drops every cached score involving them.
func (s *Service) Upsert(ctx context.Context, recs ...*model.PropertyRecord) (int, error) {
	n, err := s.store.Upsert(ctx, recs...)
	if err != nil {
		return 0, err
	}
	if s.scores != nil {
		dropped := 0
		for _, r := range recs {
			dropped += s.scores.InvalidateRecord(r.ID)
		}
		if dropped > 0 {
			s.logger.Debug(ctx, "invalidated cached scores", logger.Int("entries", dropped))
		}
	}
	return n, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueCapacity": s.queueSize,
		"dedupeSize":    s.deduper.Size(),
		"jobResults":    s.jobs.Len(),
	}
	if s.scores != nil {
		stats["scoreCacheSize"] = s.scores.Len()
	}
	if s.started {
		stats["queueLength"] = s.queue.Len()
		processed, failed := s.pool.Processed()
		stats["jobsProcessed"] = processed
		stats["jobsFailed"] = failed
	}
	return stats
}
