package cache

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/memocache/internal/singleflight"
	"github.com/IvanBrykalov/memocache/internal/util"
	"github.com/IvanBrykalov/memocache/policy/lru"
)

// ErrNoLoader is returned by GetOrLoad when Options.Loader is nil.
var ErrNoLoader = errors.New("cache: no Loader provided")

// cache is a sharded in-memory KV store with a pluggable eviction policy.
type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt Options[K, V]
	tot *totals

	sf singleflight.Group[K, V]
}

// totals are cache-wide sizes shared by all shards, reported via Metrics.Size.
type totals struct {
	entries atomic.Int64
	cost    atomic.Int64
}

// New constructs a cache from opt. See Options for defaults.
// It panics if Capacity is negative and not Unbounded.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.Capacity < 0 && opt.Capacity != Unbounded {
		panic("cache: Capacity must be >= 0 or Unbounded")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}
	hash := opt.Hasher
	if hash == nil {
		hash = util.HashKey[K]
	}

	n := util.LimitByCost(util.ShardsFor(opt.Capacity, opt.Shards), opt.MaxCost)
	c := &cache[K, V]{
		shards: make([]*shard[K, V], n),
		hash:   hash,
		opt:    opt,
		tot:    new(totals),
	}
	for i := range c.shards {
		c.shards[i] = newShard(util.SplitCapacity(opt.Capacity, n, i), splitCost(opt.MaxCost, n, i), c.tot, opt)
	}
	return c
}

func (c *cache[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Add(k, v, c.defaultDeadline(), c.costOf(v))
}

func (c *cache[K, V]) Set(k K, v V) {
	if c.closed.Load() {
		return
	}
	c.getShard(k).Set(k, v, c.defaultDeadline(), c.costOf(v))
}

func (c *cache[K, V]) SetWithTTL(k K, v V, ttl time.Duration) {
	if c.closed.Load() {
		return
	}
	c.getShard(k).Set(k, v, c.deadline(ttl), c.costOf(v))
}

func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Get(k)
}

func (c *cache[K, V]) Peek(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Peek(k)
}

func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Remove(k)
}

func (c *cache[K, V]) Clear() {
	for _, s := range c.shards {
		s.Clear()
	}
}

func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

func (c *cache[K, V]) Cap() int { return c.opt.Capacity }

func (c *cache[K, V]) Purge() int {
	n := 0
	for _, s := range c.shards {
		n += s.Purge()
	}
	return n
}

func (c *cache[K, V]) Stats() Stats {
	var st Stats
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
	}
	st.Entries = int(c.tot.entries.Load())
	st.Cost = c.tot.cost.Load()
	return st
}

// Close marks the cache closed. There are no background workers to stop.
func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		var zero V
		return zero, ErrNoLoader
	}

	v, err, _ := c.sf.Do(ctx, k, func() (V, error) {
		// Another flight may have stored k between our miss and the join.
		if v, ok := c.Peek(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v)
		}
		return v, err
	})
	return v, err
}

// getShard picks a shard by key hash; len(c.shards) is a power of two.
func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}

func (c *cache[K, V]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (c *cache[K, V]) defaultDeadline() int64 { return c.deadline(c.opt.DefaultTTL) }

// deadline converts a relative TTL into an absolute UnixNano deadline
// (0 for ttl <= 0).
func (c *cache[K, V]) deadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return c.now() + int64(ttl)
}

// costOf computes the per-entry cost, clamped to [0, MaxInt32].
func (c *cache[K, V]) costOf(v V) int32 {
	if c.opt.Cost == nil {
		return 0
	}
	iv := c.opt.Cost(v)
	if iv < 0 {
		iv = 0
	}
	if iv > math.MaxInt32 {
		iv = math.MaxInt32
	}
	return int32(iv)
}

// splitCost spreads MaxCost like util.SplitCapacity, so the shard budgets
// sum to exactly MaxCost; 0 stays disabled. New keeps n <= MaxCost.
func splitCost(maxCost int64, n, i int) int64 {
	if maxCost <= 0 {
		return 0
	}
	c := maxCost / int64(n)
	if int64(i) < maxCost%int64(n) {
		c++
	}
	return c
}
