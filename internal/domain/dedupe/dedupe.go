// Package dedupe tracks job ids for idempotent submission.
package dedupe

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultTTL             = time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

// Deduper records seen job IDs so a resubmitted job is not run twice
// within the retention window.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so it can be resubmitted, e.g. after the queue
	// rejected it.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// ttlDeduper implements Deduper on an expiring in-memory cache.
type ttlDeduper struct {
	seen            *gocache.Cache
	ttl             time.Duration
	cleanupInterval time.Duration
}

// NewInMemoryDeduper creates a deduper whose entries expire after the TTL.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ttlDeduper{
		ttl:             defaultTTL,
		cleanupInterval: defaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(d)
	}

	ttl := d.ttl
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	d.seen = gocache.New(ttl, d.cleanupInterval)
	return d
}

func (d *ttlDeduper) SeenAndRecord(_ context.Context, id string) bool {
	// Add fails when a live entry exists.
	return d.seen.Add(id, struct{}{}, gocache.DefaultExpiration) != nil
}

func (d *ttlDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Delete(id)
}

// Size counts recorded ids; expired ids count until the next cleanup.
func (d *ttlDeduper) Size() int64 {
	return int64(d.seen.ItemCount())
}
