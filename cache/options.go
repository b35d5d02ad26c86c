package cache

import (
	"context"
	"time"

	"github.com/IvanBrykalov/memocache/policy"
)

// Unbounded as Options.Capacity disables the entry limit.
const Unbounded = -1

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictPolicy: chosen by the eviction policy to bring a shard back
	// under its entry capacity.
	EvictPolicy EvictReason = iota
	// EvictTTL: the entry's deadline passed.
	EvictTTL
	// EvictCapacity: chosen to bring a shard back under its cost budget.
	EvictCapacity
)

// String returns a stable label ("policy", "ttl", "capacity").
func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	default:
		return "policy"
	}
}

// Metrics exposes cache-level observability hooks.
// NoopMetrics is used when none is configured.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Size reports cache-wide totals after a write.
	Size(entries int, cost int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe; New applies defaults:
//   - nil Policy   => LRU
//   - Shards <= 0  => auto (power of two, at least 64 entries per shard)
//   - nil Metrics  => NoopMetrics
//   - nil Hasher   => built-in hashing for strings, integers and keys.Key
type Options[K comparable, V any] struct {
	// Capacity is the entry limit. 0 retains nothing; Unbounded disables
	// the limit. Any other negative value panics in New.
	Capacity int

	// Shards is rounded up to a power of two and never exceeds Capacity.
	Shards int

	// Policy is the eviction policy factory; nil => LRU.
	Policy policy.Policy[K, V]

	// DefaultTTL applies to Add/Set (0 = no expiry).
	DefaultTTL time.Duration

	// Cost weighs a value. With MaxCost > 0 the cache evicts until both the
	// entry and cost limits hold. MaxCost is split evenly across shards.
	Cost    func(v V) int
	MaxCost int64

	// Loader fetches a value on miss for GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict runs under the shard lock for every eviction; keep it short.
	// It is not called for Remove or Clear.
	OnEvict func(k K, v V, reason EvictReason)
	Metrics Metrics

	// Clock overrides the time source. Nil => time.Now.
	Clock Clock

	// Hasher picks the shard for a key. Needed only for key types the
	// built-in hashing does not cover.
	Hasher func(K) uint64
}
