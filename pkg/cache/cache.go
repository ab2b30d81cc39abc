// Package cache provides an optional count-cache consulted only by the
// combination counter (§4.4). Caching a combination count lets a rerun of
// the same category skip re-issuing an identical FilterModalSearch request
// for a bucket combination whose count was already observed; it never
// caches component pages, since those are not idempotent across runs (the
// API may reorder or refresh results between invocations).
//
// Three backends are provided: NullCache (caching disabled; used by
// catalog.NewComponentCounter when given a nil cache and by the CLI's
// --no-cache),
// FileCache (local directory, for single-machine reruns), and RedisCache
// (shared across machines, for coordinating concurrent scraper instances
// against the same category).
package cache

import (
	"context"
	"time"
)

// Cache stores byte-sliced values under string keys with optional TTL.
type Cache interface {
	// Get retrieves a value from the cache. The boolean indicates a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value in the cache. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Keyer builds stable cache keys for combination counts.
type Keyer interface {
	// CountKey generates a key for the count of a bucket combination within
	// a category. filters maps attribute id to the selected bucket's filter
	// value; the key is stable regardless of map iteration order.
	CountKey(categoryID string, filters map[string]string) string
}

// DefaultKeyer is the default Keyer implementation.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// CountKey generates a key of the form "count:<sha256 of category+filters>".
// encoding/json marshals map[string]string keys in sorted order, so the
// resulting hash is stable regardless of how filters was constructed.
func (DefaultKeyer) CountKey(categoryID string, filters map[string]string) string {
	return hashKey("count", categoryID, filters)
}
