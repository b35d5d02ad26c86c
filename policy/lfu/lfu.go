// Package lfu implements the least-frequently-used eviction policy.
//
// Every resident entry carries a use count (1 on admission, +1 per hit or
// overwrite). The victim is the entry with the lowest count; among equal
// counts the earliest admitted entry goes first. Counts live in a binary
// heap ordered by (count, admission sequence), so each operation is
// O(log n) in the shard size.
package lfu

import (
	"container/heap"

	"github.com/IvanBrykalov/memocache/policy"
)

type entry[K comparable, V any] struct {
	n     policy.Node[K, V]
	count uint64
	seq   uint64
	idx   int // position in the heap
}

type entries[K comparable, V any] []*entry[K, V]

func (q entries[K, V]) Len() int { return len(q) }
func (q entries[K, V]) Less(i, j int) bool {
	if q[i].count != q[j].count {
		return q[i].count < q[j].count
	}
	return q[i].seq < q[j].seq
}
func (q entries[K, V]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].idx = i
	q[j].idx = j
}
func (q *entries[K, V]) Push(x any) {
	e := x.(*entry[K, V])
	e.idx = len(*q)
	*q = append(*q, e)
}
func (q *entries[K, V]) Pop() any {
	old := *q
	e := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	e.idx = -1
	return e
}

type lfu[K comparable, V any] struct {
	h   policy.Hooks[K, V]
	q   entries[K, V]
	idx map[policy.Node[K, V]]*entry[K, V]
	seq uint64
}

type lfuPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs per-shard LFU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return lfuPolicy[K, V]{} }

func (lfuPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lfu[K, V]{h: h, idx: make(map[policy.Node[K, V]]*entry[K, V])}
}

// OnAdd admits the node with a count of one. The shard list still records
// recency; LFU ignores it when choosing victims.
func (p *lfu[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	p.seq++
	e := &entry[K, V]{n: n, count: 1, seq: p.seq}
	heap.Push(&p.q, e)
	p.idx[n] = e
	return nil
}

func (p *lfu[K, V]) OnGet(n policy.Node[K, V]) {
	p.h.MoveToFront(n)
	if e, ok := p.idx[n]; ok {
		e.count++
		heap.Fix(&p.q, e.idx)
	}
}

func (p *lfu[K, V]) OnUpdate(n policy.Node[K, V]) { p.OnGet(n) }

func (p *lfu[K, V]) OnRemove(n policy.Node[K, V]) {
	if e, ok := p.idx[n]; ok {
		heap.Remove(&p.q, e.idx)
		delete(p.idx, n)
	}
}

func (p *lfu[K, V]) Victim() policy.Node[K, V] {
	if len(p.q) == 0 {
		return nil
	}
	return p.q[0].n
}

// Count reports the use count of a resident node (0 if unknown).
// Exposed for tests and diagnostics.
func Count[K comparable, V any](sp policy.ShardPolicy[K, V], n policy.Node[K, V]) uint64 {
	p, ok := sp.(*lfu[K, V])
	if !ok {
		return 0
	}
	if e, ok := p.idx[n]; ok {
		return e.count
	}
	return 0
}
