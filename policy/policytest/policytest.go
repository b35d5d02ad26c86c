// Package policytest provides a list-backed policy.Hooks for exercising
// eviction policies without a cache around them.
package policytest

import (
	"container/list"

	"github.com/IvanBrykalov/memocache/policy"
)

// Node is a minimal policy.Node.
type Node[K comparable, V any] struct {
	K K
	V V
}

func (n *Node[K, V]) Key() K    { return n.K }
func (n *Node[K, V]) Value() *V { return &n.V }

// List implements policy.Hooks over container/list and records how often
// each hook ran. Front is MRU.
type List[K comparable, V any] struct {
	l   *list.List
	idx map[policy.Node[K, V]]*list.Element

	Pushes, Moves, Removes int
}

// NewList returns an empty List.
func NewList[K comparable, V any]() *List[K, V] {
	return &List[K, V]{l: list.New(), idx: make(map[policy.Node[K, V]]*list.Element)}
}

func (h *List[K, V]) PushFront(n policy.Node[K, V]) {
	h.Pushes++
	h.idx[n] = h.l.PushFront(n)
}

func (h *List[K, V]) MoveToFront(n policy.Node[K, V]) {
	h.Moves++
	if e, ok := h.idx[n]; ok {
		h.l.MoveToFront(e)
	}
}

func (h *List[K, V]) Remove(n policy.Node[K, V]) {
	h.Removes++
	if e, ok := h.idx[n]; ok {
		h.l.Remove(e)
		delete(h.idx, n)
	}
}

// Back returns the LRU node, or nil when empty.
func (h *List[K, V]) Back() policy.Node[K, V] {
	if e := h.l.Back(); e != nil {
		return e.Value.(policy.Node[K, V])
	}
	return nil
}

func (h *List[K, V]) Len() int { return h.l.Len() }

// Keys lists resident keys from MRU to LRU.
func (h *List[K, V]) Keys() []K {
	out := make([]K, 0, h.l.Len())
	for e := h.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(policy.Node[K, V]).Key())
	}
	return out
}

// Shard drives a ShardPolicy the way a cache shard does: it owns the list,
// asks the policy for victims and unlinks them.
type Shard[K comparable, V any] struct {
	List  *List[K, V]
	P     policy.ShardPolicy[K, V]
	Cap   int
	nodes map[K]*Node[K, V]

	// Evicted collects victim keys in eviction order.
	Evicted []K
}

// NewShard binds a fresh instance of p to a new List.
func NewShard[K comparable, V any](p policy.Policy[K, V], capacity int) *Shard[K, V] {
	l := NewList[K, V]()
	return &Shard[K, V]{List: l, P: p.New(l), Cap: capacity, nodes: make(map[K]*Node[K, V])}
}

// Set inserts or updates k. A new key first evicts resident victims until
// it fits; with Cap 0 it is admitted and evicted at once.
func (s *Shard[K, V]) Set(k K, v V) {
	if n, ok := s.nodes[k]; ok {
		n.V = v
		s.P.OnUpdate(n)
		return
	}
	for s.Cap > 0 && s.List.Len() >= s.Cap {
		s.evict(s.victim())
	}
	n := &Node[K, V]{K: k, V: v}
	s.nodes[k] = n
	if ev := s.P.OnAdd(n); ev != nil {
		s.evict(ev)
	}
	for s.List.Len() > s.Cap {
		s.evict(s.victim())
	}
}

func (s *Shard[K, V]) victim() policy.Node[K, V] {
	if ev := s.P.Victim(); ev != nil {
		return ev
	}
	return s.List.Back()
}

// Get reports whether k is resident, counting a use if so.
func (s *Shard[K, V]) Get(k K) bool {
	n, ok := s.nodes[k]
	if ok {
		s.P.OnGet(n)
	}
	return ok
}

// Remove drops k without counting an eviction.
func (s *Shard[K, V]) Remove(k K) {
	if n, ok := s.nodes[k]; ok {
		s.unlink(n)
	}
}

func (s *Shard[K, V]) evict(n policy.Node[K, V]) {
	s.Evicted = append(s.Evicted, n.Key())
	s.unlink(n)
}

func (s *Shard[K, V]) unlink(n policy.Node[K, V]) {
	s.P.OnRemove(n)
	s.List.Remove(n)
	delete(s.nodes, n.Key())
}
