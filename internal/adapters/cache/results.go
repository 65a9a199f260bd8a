package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultResultTTL = time.Hour

// Results keeps values by id for a fixed retention window.
type Results[T any] struct {
	items *gocache.Cache
}

// NewResults creates a result store. A non-positive ttl uses one hour.
func NewResults[T any](ttl time.Duration) *Results[T] {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	return &Results[T]{items: gocache.New(ttl, defaultCleanupInterval)}
}

// Put stores v under id, resetting its expiry.
func (r *Results[T]) Put(id string, v T) {
	r.items.SetDefault(id, v)
}

// Get returns the value stored under id.
func (r *Results[T]) Get(id string) (T, bool) {
	var zero T
	v, ok := r.items.Get(id)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Len returns the number of stored values.
func (r *Results[T]) Len() int {
	return r.items.ItemCount()
}

// Delete removes id.
func (r *Results[T]) Delete(id string) {
	r.items.Delete(id)
}
