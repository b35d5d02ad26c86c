// Package singleflight coalesces concurrent loads of the same key.
package singleflight

import (
	"context"
	"errors"
	"sync"
)

// ErrLeaderPanicked is delivered to waiting callers when the call they joined
// panicked. The panic itself is re-raised in the leader's goroutine.
var ErrLeaderPanicked = errors.New("singleflight: leader panicked")

// Group runs fn at most once at a time per key; concurrent callers for the
// same key wait for and share the leader's result.
//
// A follower whose ctx is cancelled stops waiting and returns ctx.Err().
// The leader keeps running: thread ctx into fn if the work itself should stop.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed after val/err are published
	val  V
	err  error
	dups int
}

// Do executes fn for key unless a call for key is already in flight, in which
// case it waits for that call. shared reports whether the result was handed
// to more than one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), true
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	completed := false
	defer func() {
		if !completed {
			c.err = ErrLeaderPanicked
		}
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		shared = c.dups > 0
		g.mu.Unlock()
		close(c.done)
	}()

	c.val, c.err = fn()
	completed = true
	return c.val, c.err, false
}

// Forget drops the in-flight marker for key so the next Do starts a fresh
// call instead of joining the current one.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

