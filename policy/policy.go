// Package policy defines the contract between a cache shard and its
// eviction policy.
//
// The shard owns the key->entry map and an intrusive MRU<->LRU list; a
// policy decides how entries move in that list (through Hooks) and which
// entry to give up when the shard is over budget (Victim). Variants live in
// subpackages: lru, lfu, random, twoq.
package policy

// Node is the minimal contract a cache entry must satisfy for a policy.
// Value returns a pointer so the value can be updated without relinking.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks expose O(1) list operations on the shard's intrusive MRU/LRU list.
// All hook calls happen under the shard lock. Hooks manage only the list;
// the shard owns the key->node map.
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node[K, V])
	// PushFront inserts the node at MRU (used on admission).
	PushFront(Node[K, V])
	// Remove detaches the node from the list.
	Remove(Node[K, V])
	// Back returns the current LRU node (or nil if empty).
	Back() Node[K, V]
	// Len returns the number of resident nodes in the shard.
	Len() int
}

// ShardPolicy is a per-shard eviction policy instance bound to shard hooks.
// All methods are invoked under the shard lock.
//
//   - OnAdd admits a new node. It may return an eviction candidate (2Q does
//     when its probation queue overflows); the shard evicts it and then calls
//     OnRemove for it.
//   - OnGet / OnUpdate record a use of the node.
//   - OnRemove tells the policy the node is leaving; the shard deletes it.
//   - Victim names the node to evict when the shard exceeds its budget, or
//     nil if the policy has nothing to offer. A shard making room for a new
//     key asks before admitting it, so the victim is always a resident.
type ShardPolicy[K comparable, V any] interface {
	OnAdd(Node[K, V]) (evict Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnRemove(Node[K, V])
	Victim() Node[K, V]
}

// Policy is a factory that creates shard-local policy instances.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) ShardPolicy[K, V]
}
