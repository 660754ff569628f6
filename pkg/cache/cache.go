// Package cache provides a TTL key-value cache with in-memory and redis
// backends. A miss is a cold path, never an error: callers recompute and
// re-set. Staleness up to the TTL is the accepted tradeoff.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL-bounded key-value cache over values of type V.
type Cache[V any] interface {
	// Get returns the cached value and whether it was present and fresh.
	Get(ctx context.Context, key string) (V, bool, error)
	// Set stores the value under key for at most ttl.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// Delete evicts key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
