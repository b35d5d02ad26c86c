package memo

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Guard is a mutual-exclusion lock; sync.Mutex is one.
type Guard interface {
	Lock()
	Unlock()
}

// ContextGuard is a Guard whose acquisition can fail, for example when ctx
// is done. Call prefers LockContext when a guard implements it.
type ContextGuard interface {
	Guard
	LockContext(ctx context.Context) error
}

// Semaphore is a ContextGuard backed by a weight-1 semaphore.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore returns an unlocked Semaphore.
func NewSemaphore() *Semaphore {
	return &Semaphore{w: semaphore.NewWeighted(1)}
}

// Lock blocks until the semaphore is acquired.
func (s *Semaphore) Lock() { _ = s.w.Acquire(context.Background(), 1) }

// LockContext acquires the semaphore or returns ctx.Err().
func (s *Semaphore) LockContext(ctx context.Context) error { return s.w.Acquire(ctx, 1) }

// TryLock acquires the semaphore only if it is free.
func (s *Semaphore) TryLock() bool { return s.w.TryAcquire(1) }

func (s *Semaphore) Unlock() { s.w.Release(1) }

var _ ContextGuard = (*Semaphore)(nil)

// acquire takes g, through LockContext when available.
func acquire(ctx context.Context, g Guard) error {
	if cg, ok := g.(ContextGuard); ok {
		return cg.LockContext(ctx)
	}
	g.Lock()
	return nil
}
