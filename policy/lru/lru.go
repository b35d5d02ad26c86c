// Package lru implements the least-recently-used eviction policy.
package lru

import "github.com/IvanBrykalov/memocache/policy"

// lru is classic move-to-front LRU. The shard list is the recency order, so
// the policy only forwards to hooks and never keeps state of its own.
type lru[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type lruPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{} }

// New implements policy.Policy.
func (lruPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lru[K, V]{h: h}
}

// OnAdd places the new entry at MRU; capacity is enforced via Victim.
func (p *lru[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	return nil
}

// OnGet promotes the entry to MRU.
func (p *lru[K, V]) OnGet(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to MRU (an overwrite is a use).
func (p *lru[K, V]) OnUpdate(n policy.Node[K, V]) { p.h.MoveToFront(n) }

// OnRemove is a no-op.
func (p *lru[K, V]) OnRemove(_ policy.Node[K, V]) {}

// Victim is the LRU end of the list.
func (p *lru[K, V]) Victim() policy.Node[K, V] { return p.h.Back() }
