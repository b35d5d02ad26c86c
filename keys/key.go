// Package keys builds cache keys from call arguments.
//
// A Key is a comparable value holding the canonical msgpack encoding of the
// normalized arguments together with its xxhash64 digest. Keys never embed
// pointer addresses or other process-local identity, so a Key written to a
// snapshot and read back compares and hashes exactly like a Key freshly
// built from the same arguments.
//
// Two builders are provided:
//
//   - Hash: numerically equal arguments collide regardless of Go type
//     (1, int8(1), uint(1) and 1.0 build the same Key).
//   - Typed: the type of every argument is part of the Key, so 1 and 1.0
//     build different Keys.
//
// Named (keyword) arguments are passed with Named and may appear anywhere in
// the argument list; they are sorted by name, so their order never matters.
package keys

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnhashable is returned (wrapped) when an argument cannot take part in a
// key: slices, maps, funcs, chans, pointers, or values containing them.
var ErrUnhashable = errors.New("keys: unhashable argument")

// Func builds a Key from call arguments.
type Func func(args ...any) (Key, error)

// Key identifies one call's arguments. The zero Key is never produced by a
// builder.
type Key struct {
	enc  string // canonical msgpack encoding
	hash uint64 // xxhash64 of enc
}

func newKey(enc []byte) Key {
	return Key{enc: string(enc), hash: xxhash.Sum64(enc)}
}

// Hash returns the key's 64-bit digest. Equal keys have equal digests.
func (k Key) Hash() uint64 { return k.hash }

// IsZero reports whether k was never built.
func (k Key) IsZero() bool { return k.enc == "" }

// Bytes returns a copy of the canonical encoding.
func (k Key) Bytes() []byte { return []byte(k.enc) }

// String renders the decoded arguments for logs and debugging.
func (k Key) String() string {
	if k.enc == "" {
		return "<zero>"
	}
	var v any
	if err := msgpack.Unmarshal([]byte(k.enc), &v); err != nil {
		return "0x" + hex.EncodeToString([]byte(k.enc))
	}
	return fmt.Sprint(v)
}

// EncodeMsgpack writes only the encoding; the digest is derived data.
func (k Key) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes([]byte(k.enc))
}

// DecodeMsgpack restores the encoding and recomputes the digest.
func (k *Key) DecodeMsgpack(dec *msgpack.Decoder) error {
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	*k = FromBytes(b)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (k Key) MarshalBinary() ([]byte, error) { return k.Bytes(), nil }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (k *Key) UnmarshalBinary(b []byte) error {
	*k = FromBytes(b)
	return nil
}

// FromBytes rebuilds a Key from an encoding previously obtained with Bytes.
func FromBytes(b []byte) Key {
	if len(b) == 0 {
		return Key{}
	}
	return newKey(b)
}

var (
	_ msgpack.CustomEncoder = Key{}
	_ msgpack.CustomDecoder = (*Key)(nil)
)
