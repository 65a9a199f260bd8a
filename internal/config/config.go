// Package config defines service configuration structures and loading hooks.
package config

import (
	"math"
	"runtime"
	"time"

	"github.com/okian/comps/internal/domain/outlier"
	"github.com/okian/comps/internal/domain/ranking"
	"github.com/okian/comps/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver is one of memory, sqlite, postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the sqlite path or postgres URL.
	StoreDSN string `koanf:"store_dsn"`

	// SeedFile is a JSON array of records loaded into the memory store.
	SeedFile string `koanf:"seed_file"`

	WorkerCount        int `koanf:"worker_count"`
	ScoringConcurrency int `koanf:"scoring_concurrency"`
	QueueSize          int `koanf:"queue_size"`

	DedupeTTLSec int `koanf:"dedupe_ttl_sec"`

	// CacheTTLSec bounds how long pair scores are reused. Upserts through a
	// running service invalidate them, but writes from another process
	// (comps import against a shared sqlite or postgres store) are only seen
	// once the TTL expires. Lower it, or set 0, when the store is shared.
	CacheTTLSec int `koanf:"cache_ttl_sec"`

	JobResultTTLSec int `koanf:"job_result_ttl_sec"`

	// CandidatePoolSize caps the candidates fetched per target. Below
	// MinSameCounty same-county matches the pool is filled from elsewhere.
	CandidatePoolSize int `koanf:"candidate_pool_size"`
	MinSameCounty     int `koanf:"min_same_county"`

	// MaxPoolSize bounds inline candidate pools.
	MaxPoolSize int `koanf:"max_pool_size"`

	RateLimitRPS   float64  `koanf:"rate_limit_rps"`
	RateLimitBurst int      `koanf:"rate_limit_burst"`
	CORSOrigins    []string `koanf:"cors_origins"`

	TopK          int     `koanf:"top_k"`
	MinSimilarity float64 `koanf:"min_similarity"`

	Weights scoring.Weights `koanf:"weights"`

	MaxDistanceMiles float64 `koanf:"max_distance_miles"`
	AgeHorizonYears  float64 `koanf:"age_horizon_years"`
	SizeHorizon      float64 `koanf:"size_horizon"`
	ValueHorizon     float64 `koanf:"value_horizon"`

	OutlierK            float64 `koanf:"outlier_k"`
	OutlierMinPartition int     `koanf:"outlier_min_partition"`

	// Counties is the supported county catalogue.
	Counties []string `koanf:"counties"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StoreDriver:         "memory",
		WorkerCount:         runtime.NumCPU(),
		ScoringConcurrency:  runtime.NumCPU(),
		QueueSize:           10_000,
		DedupeTTLSec:        3600,
		CacheTTLSec:         900,
		JobResultTTLSec:     3600,
		CandidatePoolSize:   50,
		MinSameCounty:       20,
		MaxPoolSize:         5000,
		RateLimitRPS:        50,
		RateLimitBurst:      100,
		CORSOrigins:         []string{"http://localhost:3000"},
		TopK:                ranking.DefaultTopK,
		MinSimilarity:       0,
		Weights:             scoring.DefaultWeights(),
		MaxDistanceMiles:    scoring.DefaultMaxDistanceMiles,
		AgeHorizonYears:     scoring.DefaultAgeHorizonYears,
		SizeHorizon:         math.Log(4),
		ValueHorizon:        math.Log(4),
		OutlierK:            outlier.DefaultK,
		OutlierMinPartition: outlier.DefaultMinPartition,
		Counties:            []string{"cook", "dallas", "los_angeles"},
	}
}

// Ranking returns the ranking configuration described by c.
func (c *Config) Ranking() ranking.Config {
	rc := ranking.DefaultConfig()
	rc.Weights = c.Weights
	rc.TopK = c.TopK
	rc.MinSimilarity = c.MinSimilarity
	rc.Params.MaxDistanceMiles = c.MaxDistanceMiles
	rc.Params.AgeHorizonYears = c.AgeHorizonYears
	rc.Params.SizeHorizon = c.SizeHorizon
	rc.Params.ValueHorizon = c.ValueHorizon
	rc.OutlierK = c.OutlierK
	rc.OutlierMinPartition = c.OutlierMinPartition
	return rc
}

// DedupeTTL is the job-id idempotency window.
func (c *Config) DedupeTTL() time.Duration { return seconds(c.DedupeTTLSec) }

// CacheTTL is the score cache TTL. Zero disables the cache.
func (c *Config) CacheTTL() time.Duration { return seconds(c.CacheTTLSec) }

// JobResultTTL is how long finished jobs stay readable.
func (c *Config) JobResultTTL() time.Duration { return seconds(c.JobResultTTLSec) }

// SeedOrDSN returns the source the store should open: the seed file for the
// memory driver when no dsn is set, the dsn otherwise.
func (c *Config) SeedOrDSN() string {
	if c.StoreDSN == "" && (c.StoreDriver == "" || c.StoreDriver == "memory") {
		return c.SeedFile
	}
	return c.StoreDSN
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
