// Package memo memoizes method calls in a per-receiver cache.
//
// A Method wraps a Func and, on every Call, resolves the receiver's Store
// through an accessor, builds a keys.Key from the call arguments (never the
// receiver), and either returns the cached value or invokes the Func and
// stores its result:
//
//	no store          -> invoke
//	key build failed  -> invoke, uncached (logged at debug level)
//	hit               -> return cached value, Func not invoked
//	miss              -> invoke, then store the result
//	Func error        -> return it unchanged, nothing stored
//
// The memoizer adds no locking of its own. An optional Guard, resolved per
// receiver, is held around the lookup and, on a miss, again around the
// write; the Func always runs outside it. A hit therefore costs one
// acquisition and a miss two. Without a guard, concurrent misses on the same
// key may both invoke the Func and the last write wins.
//
// Any cache.Cache[keys.Key, V] is a Store[V]; so is a *cache.Weak[keys.Key, T]
// for V = *T.
package memo
