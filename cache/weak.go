package cache

import (
	"runtime"
	"time"
	"weak"
)

// Weak is a cache of *T that does not keep its values alive. Each entry
// holds a weak.Pointer; once the garbage collector reclaims a value the
// entry reads as a miss and is dropped, either by a runtime cleanup or
// lazily on the next Get.
//
// Weak has no Snapshot: a weak reference has no serialized form.
type Weak[K comparable, T any] struct {
	c *cache[K, weak.Pointer[T]]
}

// NewWeak constructs a weak-value cache. Options work as for New.
func NewWeak[K comparable, T any](opt Options[K, weak.Pointer[T]]) *Weak[K, T] {
	return &Weak[K, T]{c: New(opt).(*cache[K, weak.Pointer[T]])}
}

func collected[T any](p weak.Pointer[T]) bool { return p.Value() == nil }

// Get returns the value for k if it is present and still alive.
// A collected value counts as a miss.
func (w *Weak[K, T]) Get(k K) (*T, bool) {
	if w.c.closed.Load() {
		return nil, false
	}
	var v *T
	_, ok := w.c.getShard(k).getIf(k, func(p weak.Pointer[T]) bool {
		v = p.Value()
		return v != nil
	})
	if !ok {
		return nil, false
	}
	return v, true
}

// Set stores v under k; a nil v removes k.
func (w *Weak[K, T]) Set(k K, v *T) {
	if v == nil {
		w.c.Remove(k)
		return
	}
	w.c.Set(k, w.track(k, v))
}

// SetWithTTL is Set with a per-key TTL.
func (w *Weak[K, T]) SetWithTTL(k K, v *T, ttl time.Duration) {
	if v == nil {
		w.c.Remove(k)
		return
	}
	w.c.SetWithTTL(k, w.track(k, v), ttl)
}

// Add stores v only if k is absent (or its value was collected).
func (w *Weak[K, T]) Add(k K, v *T) bool {
	if v == nil {
		return false
	}
	w.c.getShard(k).removeIf(k, collected[T])
	return w.c.Add(k, w.track(k, v))
}

// track makes a weak pointer to v and arranges for k to be dropped once v
// is collected, unless k has been rebound to a live value by then.
func (w *Weak[K, T]) track(k K, v *T) weak.Pointer[T] {
	runtime.AddCleanup(v, func(k K) {
		w.c.getShard(k).removeIf(k, collected[T])
	}, k)
	return weak.Make(v)
}

func (w *Weak[K, T]) Remove(k K) bool { return w.c.Remove(k) }
func (w *Weak[K, T]) Clear()          { w.c.Clear() }
func (w *Weak[K, T]) Cap() int        { return w.c.Cap() }
func (w *Weak[K, T]) Stats() Stats    { return w.c.Stats() }
func (w *Weak[K, T]) Close() error    { return w.c.Close() }

// Len counts entries whose values may already be collected but not yet
// dropped.
func (w *Weak[K, T]) Len() int { return w.c.Len() }

// Purge drops expired entries and entries whose values were collected.
func (w *Weak[K, T]) Purge() int {
	n := w.c.Purge()
	for _, s := range w.c.shards {
		n += s.sweep(collected[T])
	}
	return n
}
