// Package cmap is a sharded, concurrent map with one extra trick: a caller
// can Get a key before it exists and receive a channel that closes the
// moment some other goroutine Sets it, instead of having to poll.
//
// Harbour's source cache (src/source/cache.go) is the motivating case: many
// goroutines can race to resolve the same SourceId the first time a
// manifest is prefetched, and only one of them should actually build the
// Source.
package cmap

import (
	"fmt"
	"sync"
)

// DefaultShardCount is a reasonable default for Harbour's own cache sizes
// (a few hundred distinct SourceIds per build at most).
const DefaultShardCount = 1 << 8

// Map is the top-level sharded map. Construct with New, not a bare literal.
type Map[K comparable, V any] struct {
	shards []bucket[K, V]
	hasher func(K) uint32
	mask   uint32
}

// New builds a Map with shardCount shards (must be a power of 2, so key ->
// shard reduces to a mask instead of a modulo) using hasher to pick a key's
// shard.
func New[K comparable, V any](shardCount uint32, hasher func(K) uint32) *Map[K, V] {
	if shardCount&(shardCount-1) != 0 {
		panic(fmt.Sprintf("cmap: shard count %d is not a power of 2", shardCount))
	}
	shards := make([]bucket[K, V], shardCount)
	for i := range shards {
		shards[i].entries = map[K]slot[V]{}
	}
	return &Map[K, V]{shards: shards, hasher: hasher, mask: shardCount - 1}
}

func (m *Map[K, V]) shardFor(key K) *bucket[K, V] {
	return &m.shards[m.hasher(key)&m.mask]
}

// Set inserts key -> val if key isn't already present (possibly because
// something is waiting on it, see Get), waking any waiter. Reports whether
// the insert happened.
func (m *Map[K, V]) Set(key K, val V) bool {
	return m.shardFor(key).set(key, val)
}

// Get returns the value for key, or - if nothing has Set it yet - a channel
// that closes once something does. Callers that get a channel back should
// wait on it, then Get again. Exactly one of the two return values is ever
// meaningful at once.
func (m *Map[K, V]) Get(key K) (val V, wait <-chan struct{}) {
	return m.shardFor(key).get(key)
}

// Values returns every value currently present (not merely awaited) across
// all shards. Callers should not rely on any particular order.
func (m *Map[K, V]) Values() []V {
	var out []V
	for i := range m.shards {
		out = append(out, m.shards[i].values()...)
	}
	return out
}

// slot is one entry: either a real value, or an empty placeholder with a
// channel for Set to close when the value finally arrives.
type slot[V any] struct {
	val     V
	pending chan struct{}
}

// bucket is one shard: its own lock so unrelated keys in other shards never
// contend with each other.
type bucket[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]slot[V]
}

func (b *bucket[K, V]) set(key K, val V) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, present := b.entries[key]
	if present && existing.pending == nil {
		return false // a real value is already there
	}
	b.entries[key] = slot[V]{val: val}
	if present && existing.pending != nil {
		close(existing.pending)
	}
	return true
}

func (b *bucket[K, V]) get(key K) (val V, wait <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.entries[key]; ok {
		return s.val, s.pending
	}
	ch := make(chan struct{})
	b.entries[key] = slot[V]{pending: ch}
	return val, ch
}

func (b *bucket[K, V]) values() []V {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]V, 0, len(b.entries))
	for _, s := range b.entries {
		if s.pending == nil {
			out = append(out, s.val)
		}
	}
	return out
}
