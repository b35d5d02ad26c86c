// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Hasher is implemented by key types that carry their own 64-bit digest
// (for example keys.Key). The digest must be a pure function of the key's
// identity: equal keys must report equal digests.
type Hasher interface {
	Hash() uint64
}

// HashKey picks a 64-bit digest for shard selection.
//
// Hasher keys report their own digest, strings and byte arrays go through
// xxhash, and integers of every width are mixed so that equal values agree
// regardless of width. fmt.Stringer is the last resort. Other key types
// panic; supply cache.Options.Hasher for them.
func HashKey[K comparable](k K) uint64 {
	switch v := any(k).(type) {
	case Hasher:
		return v.Hash()
	case string:
		return xxhash.Sum64String(v)
	case [16]byte:
		return xxhash.Sum64(v[:])
	case [32]byte:
		return xxhash.Sum64(v[:])
	case int:
		return mix64(uint64(v))
	case int64:
		return mix64(uint64(v))
	case int32:
		return mix64(uint64(v))
	case int16:
		return mix64(uint64(v))
	case int8:
		return mix64(uint64(v))
	case uint:
		return mix64(uint64(v))
	case uint64:
		return mix64(v)
	case uint32:
		return mix64(uint64(v))
	case uint16:
		return mix64(uint64(v))
	case uint8:
		return mix64(uint64(v))
	case uintptr:
		return mix64(uint64(v))
	case fmt.Stringer:
		return xxhash.Sum64String(v.String())
	default:
		panic(fmt.Sprintf("util.HashKey: unsupported key type %T; implement Hash() uint64 or set Options.Hasher", k))
	}
}

// mix64 is the splitmix64 finalizer. Sequential integers land in
// different shards under a power-of-two mask.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
