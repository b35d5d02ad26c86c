package cache

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrBadSnapshot is returned by ReadSnapshot for data it cannot restore.
var ErrBadSnapshot = errors.New("cache: unsupported snapshot")

const snapshotVersion = 1

// Entry is one cache entry as captured by Snapshot.
type Entry[K comparable, V any] struct {
	Key   K `msgpack:"k"`
	Value V `msgpack:"v"`
	// Expires is an absolute deadline in UnixNano; 0 means no expiry.
	Expires int64 `msgpack:"e,omitempty"`
}

type snapshotFile[K comparable, V any] struct {
	Version int           `msgpack:"version"`
	Entries []Entry[K, V] `msgpack:"entries"`
}

func (c *cache[K, V]) Snapshot() []Entry[K, V] {
	out := make([]Entry[K, V], 0, c.Len())
	for _, s := range c.shards {
		out = s.snapshot(out)
	}
	return out
}

func (c *cache[K, V]) Restore(entries []Entry[K, V]) {
	if c.closed.Load() {
		return
	}
	now := c.now()
	for _, e := range entries {
		if e.Expires != 0 && now > e.Expires {
			continue
		}
		c.getShard(e.Key).Set(e.Key, e.Value, e.Expires, c.costOf(e.Value))
	}
}

// WriteSnapshot encodes c's live entries to w as msgpack.
// K and V must be msgpack-encodable; keys.Key is.
func WriteSnapshot[K comparable, V any](w io.Writer, c Cache[K, V]) error {
	f := snapshotFile[K, V]{Version: snapshotVersion, Entries: c.Snapshot()}
	if err := msgpack.NewEncoder(w).Encode(&f); err != nil {
		return fmt.Errorf("cache: write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot and restores it
// into c.
func ReadSnapshot[K comparable, V any](r io.Reader, c Cache[K, V]) error {
	var f snapshotFile[K, V]
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return fmt.Errorf("cache: read snapshot: %w", err)
	}
	if f.Version != snapshotVersion {
		return fmt.Errorf("%w: version %d", ErrBadSnapshot, f.Version)
	}
	c.Restore(f.Entries)
	return nil
}
