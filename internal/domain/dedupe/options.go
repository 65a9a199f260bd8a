package dedupe

import "time"

// Option applies a configuration option to the deduper.
type Option func(*ttlDeduper)

// WithTTL sets how long an id is remembered. Zero or negative keeps ids
// until they are unrecorded.
func WithTTL(ttl time.Duration) Option {
	return func(d *ttlDeduper) {
		d.ttl = ttl
	}
}

// WithCleanupInterval sets how often expired ids are purged.
func WithCleanupInterval(interval time.Duration) Option {
	return func(d *ttlDeduper) {
		if interval > 0 {
			d.cleanupInterval = interval
		}
	}
}
