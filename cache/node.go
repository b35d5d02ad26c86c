package cache

// node is an intrusive list element owned by a shard (head MRU, tail LRU).
type node[K comparable, V any] struct {
	key K
	val V

	prev *node[K, V]
	next *node[K, V]

	// Absolute deadline in UnixNano; 0 means no expiry.
	exp int64

	cost int32
}

func (n *node[K, V]) Key() K { return n.key }

// Value returns a pointer to the stored value. Only valid under the shard lock.
func (n *node[K, V]) Value() *V { return &n.val }
