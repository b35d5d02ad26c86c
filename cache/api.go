package cache

import (
	"context"
	"time"
)

// Cache is a bounded, sharded, in-memory key/value cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Operations are amortized O(1) (O(log n) under LFU): a map lookup plus
// constant-time list adjustments under a shard lock.
type Cache[K comparable, V any] interface {
	// Add inserts k→v only if k is absent, using DefaultTTL.
	// Returns false if the key already exists.
	Add(k K, v V) bool

	// Set inserts or overwrites k→v using DefaultTTL. An overwrite counts as
	// a use. A new key that does not fit first evicts the policy's victims
	// among the resident entries; it is itself dropped only when it cannot
	// fit at all (capacity 0, or a cost above MaxCost's shard budget).
	Set(k K, v V)

	// SetWithTTL is Set with a per-key TTL; ttl <= 0 means no expiry.
	SetWithTTL(k K, v V, ttl time.Duration)

	// Get returns the value for k. A hit counts as a use; an expired entry
	// is removed and reported as a miss.
	Get(k K) (V, bool)

	// Peek is Get without recording a use or touching metrics.
	Peek(k K) (V, bool)

	// Remove deletes k and reports whether it was present.
	Remove(k K) bool

	// Clear drops every entry. It is not an eviction: OnEvict is not called.
	Clear()

	// Len returns the number of resident entries. Expired entries count
	// until they are touched or purged.
	Len() int

	// Cap returns the configured capacity (Unbounded for no limit).
	Cap() int

	// Purge removes all expired entries and returns how many it dropped.
	Purge() int

	// Snapshot copies the live entries, shard by shard, least recently used
	// first, with absolute deadlines.
	Snapshot() []Entry[K, V]

	// Restore inserts entries in order, so a Snapshot restored into an
	// empty cache keeps its recency. Expired entries are skipped.
	Restore(entries []Entry[K, V])

	// Stats returns the cache's hit/miss/eviction counters and sizes.
	Stats() Stats

	// GetOrLoad returns the value for k, loading it via Options.Loader on a
	// miss. Concurrent loads for the same key are coalesced.
	// Returns ErrNoLoader if no Loader was configured.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Close marks the cache closed; later writes are ignored and reads miss.
	Close() error
}
