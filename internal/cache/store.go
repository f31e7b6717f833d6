// Package cache provides the TTL stores that memoize zone, cluster and
// heatmap computations between requests.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is the lifetime of a cached computation.
const DefaultTTL = 5 * time.Minute

// Store is a byte-oriented key/value cache with per-entry TTL.
type Store interface {
	// Get returns the value for key. ok is false on a miss or expiry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value for ttl. A non-positive ttl uses the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key starting with prefix and returns the count.
	// An empty prefix clears the whole store.
	Clear(ctx context.Context, prefix string) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Stats contains cache performance statistics.
type Stats struct {
	Backend    string  `json:"backend"`
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries,omitempty"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total)
	}
	return 0
}

// Clock supplies the current time. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
