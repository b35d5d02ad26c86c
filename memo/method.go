package memo

import (
	"context"
	"reflect"

	"github.com/apex/log"

	"github.com/IvanBrykalov/memocache/keys"
)

// Store is the part of a cache the memoizer uses.
type Store[V any] interface {
	Get(k keys.Key) (V, bool)
	Set(k keys.Key, v V)
}

// Func is a memoizable method: recv is the receiver, args the call
// arguments that make up the key. Use keys.Named for keyword arguments.
type Func[R, V any] func(ctx context.Context, recv R, args ...any) (V, error)

// Options binds a Func to its cache.
type Options[R, V any] struct {
	// Name labels log entries. Defaults to "memo".
	Name string

	// Cache returns the receiver's store; a nil accessor or a nil store
	// (typed nil pointers included) disables caching for the call.
	Cache func(R) Store[V]

	// Key builds the cache key; nil => keys.Hash.
	Key keys.Func

	// Guard returns the receiver's guard; nil or a nil pointer => no guard.
	Guard func(R) Guard

	// Logger receives bypass diagnostics; nil => the apex/log default.
	Logger log.Interface
}

// Method is a memoized Func. It keeps no per-call state and is safe for
// concurrent use to the extent its Store and Func are.
type Method[R, V any] struct {
	fn  Func[R, V]
	opt Options[R, V]
	log log.Interface
}

// New wraps fn.
func New[R, V any](fn Func[R, V], opt Options[R, V]) *Method[R, V] {
	if opt.Name == "" {
		opt.Name = "memo"
	}
	if opt.Key == nil {
		opt.Key = keys.Hash
	}
	if opt.Logger == nil {
		opt.Logger = log.Log
	}
	return &Method[R, V]{
		fn:  fn,
		opt: opt,
		log: opt.Logger.WithField("method", opt.Name),
	}
}

// Wrap is New(fn, opt).Call as a Func.
func Wrap[R, V any](fn Func[R, V], opt Options[R, V]) Func[R, V] {
	return New(fn, opt).Call
}

// Shared is a Cache accessor that returns s for every receiver.
func Shared[R, V any](s Store[V]) func(R) Store[V] {
	return func(R) Store[V] { return s }
}

// Key builds the key Call would use for args, e.g. to Remove an entry.
func (m *Method[R, V]) Key(args ...any) (keys.Key, error) { return m.opt.Key(args...) }

// Call returns the memoized result of fn(ctx, recv, args...).
//
// Errors from fn and from the lookup's guard acquisition are returned
// unchanged. A key that cannot be built is not an error: the call runs
// uncached. Neither is a guard refused for the write; the fresh value is
// returned without being cached.
func (m *Method[R, V]) Call(ctx context.Context, recv R, args ...any) (V, error) {
	var store Store[V]
	if m.opt.Cache != nil {
		store = m.opt.Cache(recv)
	}
	if isNil(store) {
		return m.fn(ctx, recv, args...)
	}

	k, err := m.opt.Key(args...)
	if err != nil {
		m.log.WithField("reason", "key").WithError(err).Debug("bypassing cache")
		return m.fn(ctx, recv, args...)
	}

	var g Guard
	if m.opt.Guard != nil {
		g = m.opt.Guard(recv)
	}
	if isNil(g) {
		g = nil
	}

	v, ok, err := m.lookup(ctx, g, store, k)
	if err != nil || ok {
		return v, err
	}

	v, err = m.fn(ctx, recv, args...)
	if err != nil {
		return v, err
	}
	if err := m.store(ctx, g, store, k, v); err != nil {
		m.log.WithField("reason", "guard").WithError(err).Debug("value not cached")
	}
	return v, nil
}

// isNil reports whether x is nil or a nil pointer, map, func or chan held
// in an interface.
func isNil(x any) bool {
	if x == nil {
		return true
	}
	switch rv := reflect.ValueOf(x); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func (m *Method[R, V]) lookup(ctx context.Context, g Guard, s Store[V], k keys.Key) (v V, ok bool, err error) {
	if g != nil {
		if err = acquire(ctx, g); err != nil {
			return v, false, err
		}
		defer g.Unlock()
	}
	v, ok = s.Get(k)
	return v, ok, nil
}

func (m *Method[R, V]) store(ctx context.Context, g Guard, s Store[V], k keys.Key, v V) error {
	if g != nil {
		if err := acquire(ctx, g); err != nil {
			return err
		}
		defer g.Unlock()
	}
	s.Set(k, v)
	return nil
}
