// Package cache provides a bounded, generic, sharded in-memory cache with
// pluggable eviction policies (LRU by default), per-entry TTL, cost limits,
// optional singleflight loading, metrics hooks, msgpack snapshots and a
// weak-value variant.
//
// Design
//
//   - Concurrency: the cache is split into shards, each protected by an
//     RWMutex. The automatic shard count is a power of two derived from
//     GOMAXPROCS but never leaves a shard with fewer than 64 entries, so a
//     small cache is a single shard with one global eviction order.
//
//   - Capacity: Options.Capacity is split exactly across shards (floor plus
//     remainder), so Len() <= Cap() holds after every write. Capacity 0
//     retains nothing; Unbounded disables the limit.
//
//   - Storage: each shard keeps a map[K]*node and an intrusive MRU↔LRU list.
//
//   - Policies: the policy package defines the contract. When a shard is
//     full it evicts policy.ShardPolicy.Victim() among the resident entries
//     before admitting a new key, so the newcomer is never its own victim
//     unless it cannot fit at all. Provided: lru (default), lfu, random,
//     twoq.
//
//   - TTL: deadlines are absolute and set on write; reads never extend
//     them. Expired entries read as misses, are dropped on access, are
//     evicted before any policy victim, and can be swept with Purge.
//
//   - Snapshots: Snapshot/Restore keep per-shard recency; WriteSnapshot and
//     ReadSnapshot carry them through msgpack.
//
//   - Weak: NewWeak caches *T without keeping values alive.
//
// Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a")
//
// With GetOrLoad
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 1024,
//	    Loader: func(ctx context.Context, k string) (string, error) {
//	        return "v:" + k, nil
//	    },
//	})
//	v, err := c.GetOrLoad(ctx, "key")
//
// With LFU and a snapshot
//
//	c := cache.New[keys.Key, int](cache.Options[keys.Key, int]{
//	    Capacity: 50_000,
//	    Policy:   lfu.New[keys.Key, int](),
//	})
//	err := cache.WriteSnapshot(f, c)
package cache
