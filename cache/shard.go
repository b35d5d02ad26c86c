package cache

import (
	"math"
	"sync"
	"time"

	"github.com/IvanBrykalov/memocache/internal/util"
	"github.com/IvanBrykalov/memocache/policy"
)

// shard is an independent partition of the cache with its own lock, map,
// and an intrusive doubly linked list (head=MRU, tail=LRU).
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu      sync.RWMutex
	m       map[K]*node[K, V]
	head    *node[K, V] // MRU
	tail    *node[K, V] // LRU
	len     int
	cost    int64
	cap     int   // entry budget; negative = unbounded
	maxCost int64 // 0 = disabled
	nextExp int64 // no entry expires before this; 0 = none has a deadline

	factory policy.Policy[K, V]
	pol     policy.ShardPolicy[K, V]
	opt     Options[K, V]
	tot     *totals

	_      util.CacheLinePad
	hits   util.Counter
	misses util.Counter
	evicts util.Counter
}

func newShard[K comparable, V any](capacity int, maxCost int64, tot *totals, opt Options[K, V]) *shard[K, V] {
	hint := capacity
	if hint < 0 || hint > 1024 {
		hint = 1024
	}
	s := &shard[K, V]{
		m:       make(map[K]*node[K, V], hint),
		cap:     capacity,
		maxCost: maxCost,
		factory: opt.Policy,
		opt:     opt,
		tot:     tot,
	}
	s.pol = s.factory.New(shardHooks[K, V]{s: s})
	return s
}

// Add inserts a new entry; returns false if the key already exists.
// exp is an absolute UnixNano deadline (0 = none).
func (s *shard[K, V]) Add(k K, v V, exp int64, cost int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, exists := s.m[k]; exists {
		if !s.expiredLocked(n) {
			return false
		}
		s.evictNode(n, EvictTTL)
	}
	s.insertLocked(k, v, exp, cost)
	return true
}

// Set inserts or updates an entry; an update counts as a use.
func (s *shard[K, V]) Set(k K, v V, exp int64, cost int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[k]; ok {
		s.cost += int64(cost) - int64(n.cost)
		s.tot.cost.Add(int64(cost) - int64(n.cost))
		n.val = v
		n.exp = exp
		n.cost = cost
		s.noteDeadline(exp)

		s.pol.OnUpdate(n)
		s.enforceLimitsLocked()
		return
	}
	s.insertLocked(k, v, exp, cost)
}

// insertLocked admits a new key. Room is made among the resident entries
// before the key is linked, so it can only be turned away when it does not
// fit on its own: a zero-capacity shard, or a cost above the whole budget.
func (s *shard[K, V]) insertLocked(k K, v V, exp int64, cost int32) {
	n := &node[K, V]{key: k, val: v, exp: exp, cost: cost}

	reject, reason := false, EvictPolicy
	switch {
	case s.cap == 0:
		reject = true
	case s.maxCost > 0 && int64(cost) > s.maxCost:
		reject, reason = true, EvictCapacity
	default:
		s.makeRoomLocked(int64(cost))
	}

	s.m[k] = n
	s.noteDeadline(exp)
	if ev := s.pol.OnAdd(n); ev != nil && ev != policy.Node[K, V](n) {
		s.evictNode(ev.(*node[K, V]), EvictPolicy)
	}
	if reject {
		s.evictNode(n, reason)
	}
	s.enforceLimitsLocked()
}

// Get returns the value and records a use. Expired entries are evicted.
func (s *shard[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if ok && s.expiredLocked(n) {
		s.evictNode(n, EvictTTL)
		ok = false
	}
	if !ok {
		s.misses.Inc()
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}

	s.pol.OnGet(n)
	s.hits.Inc()
	s.opt.Metrics.Hit()
	return n.val, true
}

// Peek reads without promotion. Expired entries read as absent but stay
// until a write or Purge removes them.
func (s *shard[K, V]) Peek(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.m[k]
	if !ok || s.expiredLocked(n) {
		var zero V
		return zero, false
	}
	return n.val, true
}

// Remove deletes an entry by key. Not counted as an eviction.
func (s *shard[K, V]) Remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.pol.OnRemove(n)
	s.removeNode(n)
	delete(s.m, k)
	s.reportSizeLocked()
	return true
}

// getIf is Get for entries whose value may have gone stale: an entry whose
// value fails live is dropped (not an eviction) and read as a miss.
func (s *shard[K, V]) getIf(k K, live func(V) bool) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	switch {
	case ok && s.expiredLocked(n):
		s.evictNode(n, EvictTTL)
		ok = false
	case ok && !live(n.val):
		s.pol.OnRemove(n)
		s.removeNode(n)
		delete(s.m, k)
		s.reportSizeLocked()
		ok = false
	}
	if !ok {
		s.misses.Inc()
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}

	s.pol.OnGet(n)
	s.hits.Inc()
	s.opt.Metrics.Hit()
	return n.val, true
}

// Clear drops every entry and starts the policy afresh.
func (s *shard[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tot.entries.Add(-int64(s.len))
	s.tot.cost.Add(-s.cost)
	clear(s.m)
	s.head, s.tail = nil, nil
	s.len, s.cost, s.nextExp = 0, 0, 0
	s.pol = s.factory.New(shardHooks[K, V]{s: s})
	s.reportSizeLocked()
}

// Purge evicts every expired entry and returns the count.
func (s *shard[K, V]) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.purgeExpiredLocked(true)
	if n > 0 {
		s.reportSizeLocked()
	}
	return n
}

func (s *shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// snapshot appends live entries LRU→MRU.
func (s *shard[K, V]) snapshot(dst []Entry[K, V]) []Entry[K, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for n := s.tail; n != nil; n = n.prev {
		if s.expiredLocked(n) {
			continue
		}
		dst = append(dst, Entry[K, V]{Key: n.key, Value: n.val, Expires: n.exp})
	}
	return dst
}

// -------------------- internals (mu held) --------------------

func (s *shard[K, V]) expiredLocked(n *node[K, V]) bool {
	return n.exp != 0 && s.now() > n.exp
}

func (s *shard[K, V]) now() int64 {
	if s.opt.Clock != nil {
		return s.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (s *shard[K, V]) noteDeadline(exp int64) {
	if exp != 0 && (s.nextExp == 0 || exp < s.nextExp) {
		s.nextExp = exp
	}
}

// purgeExpiredLocked evicts expired entries. Unless force is set, the walk
// is skipped while the earliest known deadline is still ahead.
func (s *shard[K, V]) purgeExpiredLocked(force bool) int {
	if s.nextExp == 0 {
		return 0
	}
	now := s.now()
	if !force && now <= s.nextExp {
		return 0
	}

	purged := 0
	next := int64(math.MaxInt64)
	for n := s.tail; n != nil; {
		prev := n.prev
		switch {
		case n.exp == 0:
		case now > n.exp:
			s.evictNode(n, EvictTTL)
			purged++
		case n.exp < next:
			next = n.exp
		}
		n = prev
	}
	if next == math.MaxInt64 {
		next = 0
	}
	s.nextExp = next
	return purged
}

func (s *shard[K, V]) insertFront(n *node[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
	s.cost += int64(n.cost)
	s.tot.entries.Add(1)
	s.tot.cost.Add(int64(n.cost))
}

func (s *shard[K, V]) moveToFront(n *node[K, V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *shard[K, V]) removeNode(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
	s.cost -= int64(n.cost)
	s.tot.entries.Add(-1)
	s.tot.cost.Add(-int64(n.cost))
}

// evictNode removes n, counts it and calls OnEvict.
func (s *shard[K, V]) evictNode(n *node[K, V], reason EvictReason) {
	s.pol.OnRemove(n)
	s.removeNode(n)
	delete(s.m, n.key)
	s.evicts.Inc()
	s.opt.Metrics.Evict(reason)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

// victimLocked asks the policy first and falls back to the LRU tail.
func (s *shard[K, V]) victimLocked() *node[K, V] {
	if v := s.pol.Victim(); v != nil {
		return v.(*node[K, V])
	}
	return s.tail
}

// makeRoomLocked evicts resident entries until one more entry of the given
// cost fits: expired entries first, then policy victims.
func (s *shard[K, V]) makeRoomLocked(cost int64) {
	full := func() bool {
		return (s.cap >= 0 && s.len >= s.cap) || (s.maxCost > 0 && s.cost+cost > s.maxCost)
	}
	if s.len == 0 || !full() {
		return
	}
	s.purgeExpiredLocked(false)
	for s.len > 0 && s.cap >= 0 && s.len >= s.cap {
		s.evictNode(s.victimLocked(), EvictPolicy)
	}
	for s.len > 0 && s.maxCost > 0 && s.cost+cost > s.maxCost {
		s.evictNode(s.victimLocked(), EvictCapacity)
	}
}

// enforceLimitsLocked brings the shard back within its entry and cost
// budgets: expired entries go first, then policy victims.
func (s *shard[K, V]) enforceLimitsLocked() {
	if s.overLocked() {
		s.purgeExpiredLocked(false)
	}
	for s.cap >= 0 && s.len > s.cap {
		v := s.victimLocked()
		if v == nil {
			break
		}
		s.evictNode(v, EvictPolicy)
	}
	for s.maxCost > 0 && s.cost > s.maxCost {
		v := s.victimLocked()
		if v == nil {
			break
		}
		s.evictNode(v, EvictCapacity)
	}
	s.reportSizeLocked()
}

func (s *shard[K, V]) reportSizeLocked() {
	s.opt.Metrics.Size(int(s.tot.entries.Load()), s.tot.cost.Load())
}

func (s *shard[K, V]) overLocked() bool {
	return (s.cap >= 0 && s.len > s.cap) || (s.maxCost > 0 && s.cost > s.maxCost)
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.insertFront(x.(*node[K, V])) }

// Remove only unlinks; the shard does the map bookkeeping.
func (h shardHooks[K, V]) Remove(x policy.Node[K, V]) { h.s.removeNode(x.(*node[K, V])) }

// Back returns an untyped nil for an empty list so policies can compare
// against nil.
func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}

func (h shardHooks[K, V]) Len() int { return h.s.len }

// removeIf deletes k if present and pred approves its value. Not counted
// as an eviction.
func (s *shard[K, V]) removeIf(k K, pred func(V) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok || !pred(n.val) {
		return false
	}
	s.pol.OnRemove(n)
	s.removeNode(n)
	delete(s.m, k)
	s.reportSizeLocked()
	return true
}

// sweep is removeIf over the whole shard.
func (s *shard[K, V]) sweep(pred func(V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for n := s.tail; n != nil; {
		prev := n.prev
		if pred(n.val) {
			s.pol.OnRemove(n)
			s.removeNode(n)
			delete(s.m, n.key)
			removed++
		}
		n = prev
	}
	if removed > 0 {
		s.reportSizeLocked()
	}
	return removed
}
