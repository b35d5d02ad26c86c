// Package random implements random-replacement eviction: the victim is a
// uniformly random resident entry.
package random

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/IvanBrykalov/memocache/policy"
)

type random[K comparable, V any] struct {
	h     policy.Hooks[K, V]
	rng   *rand.Rand
	nodes []policy.Node[K, V]
	pos   map[policy.Node[K, V]]int
}

type randomPolicy[K comparable, V any] struct {
	seed   uint64
	shards *atomic.Uint64 // per-shard stream selector
}

// New returns a random-replacement factory. Each shard draws from its own
// PCG stream derived from seed and the shard's creation order, so a fixed
// seed gives a reproducible eviction sequence.
func New[K comparable, V any](seed uint64) policy.Policy[K, V] {
	return randomPolicy[K, V]{seed: seed, shards: new(atomic.Uint64)}
}

func (p randomPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	stream := p.shards.Add(1)
	return &random[K, V]{
		h:   h,
		rng: rand.New(rand.NewPCG(p.seed, stream)),
		pos: make(map[policy.Node[K, V]]int),
	}
}

func (r *random[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	r.h.PushFront(n)
	r.pos[n] = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return nil
}

// OnGet keeps the shard list in recency order for snapshots; it has no
// effect on victim choice.
func (r *random[K, V]) OnGet(n policy.Node[K, V]) { r.h.MoveToFront(n) }

func (r *random[K, V]) OnUpdate(n policy.Node[K, V]) { r.h.MoveToFront(n) }

// OnRemove swaps the last slot into the freed one.
func (r *random[K, V]) OnRemove(n policy.Node[K, V]) {
	i, ok := r.pos[n]
	if !ok {
		return
	}
	last := len(r.nodes) - 1
	if i != last {
		r.nodes[i] = r.nodes[last]
		r.pos[r.nodes[i]] = i
	}
	r.nodes[last] = nil
	r.nodes = r.nodes[:last]
	delete(r.pos, n)
}

func (r *random[K, V]) Victim() policy.Node[K, V] {
	if len(r.nodes) == 0 {
		return nil
	}
	return r.nodes[r.rng.IntN(len(r.nodes))]
}
