package util

import "runtime"

// MinShardCapacity is the smallest per-shard entry budget the automatic
// shard count will produce. Small caches therefore collapse to one shard,
// which keeps eviction order global.
const MinShardCapacity = 64

// ReasonableShardCount picks a practical default shard count based on CPU
// parallelism: nextPow2(2*GOMAXPROCS), clamped to [1..256].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > 256 {
		n = 256
	}
	return n
}

// ShardsFor resolves the shard count for a cache of the given capacity.
// A negative capacity means "unbounded". requested <= 0 selects the
// automatic count; any result is a power of two and never exceeds the
// capacity (a shard with no budget could never hold an entry).
func ShardsFor(capacity, requested int) int {
	var n int
	if requested > 0 {
		n = int(NextPow2(uint64(requested)))
	} else {
		n = ReasonableShardCount()
		if capacity >= 0 {
			for n > 1 && capacity/n < MinShardCapacity {
				n >>= 1
			}
		}
	}
	if capacity >= 0 && n > capacity {
		n = int(PrevPow2(uint64(capacity)))
	}
	if n < 1 {
		n = 1
	}
	return n
}

// LimitByCost lowers a shard count to a power of two no larger than a
// positive cost budget, so every shard gets at least one unit of it.
func LimitByCost(n int, maxCost int64) int {
	if maxCost > 0 && int64(n) > maxCost {
		return int(PrevPow2(uint64(maxCost)))
	}
	return n
}

// SplitCapacity returns the budget of shard i when capacity is spread over
// n shards: floor(capacity/n) plus one for the first capacity%n shards, so the
// budgets sum to exactly capacity. A negative capacity is passed through.
func SplitCapacity(capacity, n, i int) int {
	if capacity < 0 {
		return capacity
	}
	c := capacity / n
	if i < capacity%n {
		c++
	}
	return c
}

// ShardIndex maps a 64-bit hash to a shard index.
// Uses a mask when shards is a power of two, modulo otherwise.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}
