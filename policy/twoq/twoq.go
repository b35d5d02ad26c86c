// Package twoq implements the 2Q eviction policy, which resists pollution
// from one-off scans by admitting new keys into a probation queue first.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/memocache/policy"
)

// twoQ keeps two resident classes on top of the shard list:
//
//	A1in  probation: first-time admissions, tracked in inList/inIdx
//	Am    protected: everything resident that is not in A1in
//
// and a ghost queue A1out holding only the keys of entries recently dropped
// from A1in. A key found in A1out on admission skips probation.
//
// All methods run under the shard lock.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	capIn    int // A1in budget (per shard)
	capGhost int // A1out budget (per shard)

	inList *list.List // A1in, MRU at Front
	inIdx  map[policy.Node[K, V]]*list.Element

	ghostList *list.List // A1out keys, MRU at Front
	ghostIdx  map[K]*list.Element
}

type twoQPolicy[K comparable, V any] struct {
	capIn    int
	capGhost int
}

// New constructs a 2Q policy factory. Sizes are per shard; common choices
// are capIn ≈ 25% and capGhost ≈ 50% of the shard budget.
func New[K comparable, V any](capIn, capGhost int) policy.Policy[K, V] {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy[K, V]{capIn: capIn, capGhost: capGhost}
}

// ForCapacity sizes a 2Q factory from a per-shard budget with the usual
// 25% / 50% split.
func ForCapacity[K comparable, V any](perShard int) policy.Policy[K, V] {
	return New[K, V](perShard/4, perShard/2)
}

func (p twoQPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &twoQ[K, V]{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[policy.Node[K, V]]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

// OnAdd admits a ghost hit straight into Am; anything else enters A1in.
// An overflowing A1in hands its LRU back to the shard for eviction.
func (q *twoQ[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.h.PushFront(n)
		return nil
	}

	q.h.PushFront(n)
	q.inIdx[n] = q.inList.PushFront(n)

	if q.inList.Len() > q.capIn {
		if tail := q.inList.Back(); tail != nil {
			return tail.Value.(policy.Node[K, V])
		}
	}
	return nil
}

// OnGet promotes an A1in node to Am and moves it to MRU.
func (q *twoQ[K, V]) OnGet(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

// OnUpdate counts as a use.
func (q *twoQ[K, V]) OnUpdate(n policy.Node[K, V]) { q.OnGet(n) }

// OnRemove remembers keys leaving A1in as ghosts. Am removals leave no trace.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}

// Victim reclaims from A1in while it is at its budget, otherwise from the
// LRU end of the shard list.
func (q *twoQ[K, V]) Victim() policy.Node[K, V] {
	if q.inList.Len() > 0 && q.inList.Len() >= q.capIn {
		return q.inList.Back().Value.(policy.Node[K, V])
	}
	return q.h.Back()
}
