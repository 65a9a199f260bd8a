// Package ranking orchestrates scoring across a candidate pool and produces
// the ranked top-K comparables for a target parcel.
package ranking

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/outlier"
	"github.com/okian/comps/internal/domain/scoring"
)

// ScoreKey identifies one cached (target, candidate) score under a given
// scoring configuration.
type ScoreKey struct {
	TargetID    string
	CandidateID string
	ConfigHash  uint64
}

// ScoreCache stores per-pair scores across requests. Invalidation is the
// owner's responsibility.
type ScoreCache interface {
	Get(key ScoreKey) (scoring.Result, bool)
	Set(key ScoreKey, res scoring.Result)
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithConcurrency sets how many candidates are scored in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithCache attaches a score cache.
func WithCache(c ScoreCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// Request is one ranking call.
type Request struct {
	Target *model.PropertyRecord
	Pool   []*model.PropertyRecord
	Config Config
	// SkipCache bypasses the score cache, for pools whose records may not
	// match what is stored under the same ids.
	SkipCache bool
}

// Criteria echoes the settings a response was produced with.
type Criteria struct {
	TopK          int             `json:"top_k"`
	MinSimilarity float64         `json:"min_similarity"`
	Weights       scoring.Weights `json:"weights"`
	PoolSize      int             `json:"pool_size"`
}

// Stats describes the work done for one response.
type Stats struct {
	Scored    int
	CacheHits int
	Outliers  map[model.OutlierFlag]int
}

// Response is the ranked result. Comparables is never nil.
type Response struct {
	Target      *model.PropertyRecord    `json:"target"`
	Comparables []model.ComparableResult `json:"comparables"`
	Count       int                      `json:"count"`
	Criteria    Criteria                 `json:"criteria"`
	Stats       Stats                    `json:"-"`
}

// Engine ranks candidate pools. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	concurrency int
	cache       ScoreCache
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{concurrency: runtime.NumCPU()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateRequest checks the request before any scoring happens.
func ValidateRequest(req Request) error {
	if req.Target == nil || req.Target.ID == "" || req.Target.CountyID == "" {
		return invalid(ErrMissingTarget, nil)
	}
	return req.Config.Validate()
}

// Rank scores every candidate, annotates outliers over the whole pool,
// applies the similarity threshold and returns the top-K. An empty result
// is not an error. The only errors are ErrInvalidRequest and ctx errors.
func (e *Engine) Rank(ctx context.Context, req Request) (*Response, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	cfg := req.Config

	cands := make([]*model.PropertyRecord, 0, len(req.Pool))
	for _, c := range req.Pool {
		if c == nil || c.ID == req.Target.ID {
			continue
		}
		cands = append(cands, c)
	}

	scorer := scoring.New(
		scoring.WithParams(cfg.Params),
		scoring.WithWeights(cfg.Weights),
		scoring.WithConfidence(cfg.Confidence),
	)
	cache := e.cache
	if req.SkipCache {
		cache = nil
	}
	hash := cfg.Hash()

	scores := make([]scoring.Result, len(cands))
	hits := make([]bool, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, cand := range cands {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scores[i], hits[i] = score(scorer, cache, req.Target, cand, hash)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flags := outlier.New(
		outlier.WithK(cfg.OutlierK),
		outlier.WithMinPartition(cfg.OutlierMinPartition),
	).Detect(cands)

	stats := Stats{Scored: len(cands), Outliers: make(map[model.OutlierFlag]int)}
	results := make([]model.ComparableResult, 0, len(cands))
	for i, cand := range cands {
		if hits[i] {
			stats.CacheHits++
		}
		f := flags[i]
		for _, fl := range f {
			stats.Outliers[fl]++
		}
		if scores[i].Similarity < cfg.MinSimilarity {
			continue
		}
		if f == nil {
			f = []model.OutlierFlag{}
		}
		results = append(results, model.ComparableResult{
			Property:          *cand,
			SimilarityFactors: scores[i].Factors,
			SimilarityScore:   scores[i].Similarity,
			ConfidenceScore:   scores[i].Confidence,
			DistanceMiles:     scores[i].DistanceMiles,
			OutlierFlags:      f,
		})
	}

	Sort(results)
	if len(results) > cfg.TopK {
		results = results[:cfg.TopK]
	}

	return &Response{
		Target:      req.Target,
		Comparables: results,
		Count:       len(results),
		Criteria: Criteria{
			TopK:          cfg.TopK,
			MinSimilarity: cfg.MinSimilarity,
			Weights:       cfg.Weights,
			PoolSize:      len(cands),
		},
		Stats: stats,
	}, nil
}

func score(s *scoring.Scorer, cache ScoreCache, target, cand *model.PropertyRecord, hash uint64) (scoring.Result, bool) {
	if cache == nil || cand.ID == "" {
		return s.Score(target, cand), false
	}
	key := ScoreKey{TargetID: target.ID, CandidateID: cand.ID, ConfigHash: hash}
	if res, ok := cache.Get(key); ok {
		return res, true
	}
	res := s.Score(target, cand)
	cache.Set(key, res)
	return res, false
}

// Sort orders results by similarity descending, then confidence descending,
// then distance ascending with missing distances last, then id.
func Sort(results []model.ComparableResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		if a.SimilarityScore != b.SimilarityScore {
			return a.SimilarityScore > b.SimilarityScore
		}
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		switch {
		case a.DistanceMiles != nil && b.DistanceMiles != nil:
			if *a.DistanceMiles != *b.DistanceMiles {
				return *a.DistanceMiles < *b.DistanceMiles
			}
		case a.DistanceMiles != nil:
			return true
		case b.DistanceMiles != nil:
			return false
		}
		return a.Property.ID < b.Property.ID
	})
}
