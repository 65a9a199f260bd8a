// Package cache provides expiring in-memory caches for per-pair scores and
// finished job results.
package cache

import (
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/okian/comps/internal/domain/ranking"
	"github.com/okian/comps/internal/domain/scoring"
)

const (
	defaultScoreTTL        = 15 * time.Minute
	defaultCleanupInterval = 5 * time.Minute
	keySep                 = "\x00"
)

// ScoreCache is a ranking.ScoreCache with caller-controlled invalidation.
type ScoreCache interface {
	ranking.ScoreCache
	// InvalidateTarget drops every score computed for target id.
	InvalidateTarget(id string) int
	// InvalidateRecord drops every score where id was target or candidate.
	InvalidateRecord(id string) int
	Flush()
	Len() int
}

// ScoreOption applies a configuration option to the score cache.
type ScoreOption func(*scoreCache)

// WithScoreTTL sets how long scores are kept.
func WithScoreTTL(ttl time.Duration) ScoreOption {
	return func(c *scoreCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often expired entries are purged.
func WithCleanupInterval(interval time.Duration) ScoreOption {
	return func(c *scoreCache) {
		if interval > 0 {
			c.cleanup = interval
		}
	}
}

type scoreCache struct {
	items   *gocache.Cache
	ttl     time.Duration
	cleanup time.Duration
}

// NewScoreCache creates an expiring score cache.
func NewScoreCache(opts ...ScoreOption) ScoreCache {
	c := &scoreCache{ttl: defaultScoreTTL, cleanup: defaultCleanupInterval}
	for _, opt := range opts {
		opt(c)
	}
	c.items = gocache.New(c.ttl, c.cleanup)
	return c
}

func scoreKey(k ranking.ScoreKey) string {
	return k.TargetID + keySep + k.CandidateID + keySep + strconv.FormatUint(k.ConfigHash, 16)
}

func (c *scoreCache) Get(k ranking.ScoreKey) (scoring.Result, bool) {
	v, ok := c.items.Get(scoreKey(k))
	if !ok {
		return scoring.Result{}, false
	}
	res, ok := v.(scoring.Result)
	return res, ok
}

func (c *scoreCache) Set(k ranking.ScoreKey, res scoring.Result) {
	c.items.SetDefault(scoreKey(k), res)
}

func (c *scoreCache) InvalidateTarget(id string) int {
	return c.deleteWhere(func(target, _ string) bool { return target == id })
}

func (c *scoreCache) InvalidateRecord(id string) int {
	return c.deleteWhere(func(target, cand string) bool { return target == id || cand == id })
}

func (c *scoreCache) deleteWhere(match func(target, cand string) bool) int {
	n := 0
	for key := range c.items.Items() {
		parts := strings.SplitN(key, keySep, 3)
		if len(parts) != 3 {
			continue
		}
		if match(parts[0], parts[1]) {
			c.items.Delete(key)
			n++
		}
	}
	return n
}

func (c *scoreCache) Flush() {
	c.items.Flush()
}

func (c *scoreCache) Len() int {
	return c.items.ItemCount()
}
