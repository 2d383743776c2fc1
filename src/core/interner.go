package core

import (
	"sync"

	"github.com/harbour-build/harbour/src/cmap"
)

// Interner hands out a stable, comparable handle for each distinct string it
// sees. Package names and source identifiers are interned once per process
// (spec §9 Design Notes) so the resolver's inner loops can compare handles
// by value instead of doing string comparisons. It is append-only and
// thread-safe; entries are never evicted for the lifetime of the process.
type Interner struct {
	mu     sync.Mutex
	byStr  map[string]uint32
	byID   []string
}

// NewInterner constructs an empty Interner.
func NewInterner() *Interner {
	return &Interner{byStr: make(map[string]uint32)}
}

// Intern returns the handle for s, assigning a new one the first time s is seen.
func (in *Interner) Intern(s string) uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byStr[s]; ok {
		return id
	}
	id := uint32(len(in.byID))
	in.byID = append(in.byID, s)
	in.byStr[s] = id
	return id
}

// Lookup returns the string for a previously interned handle.
func (in *Interner) Lookup(id uint32) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.byID[id]
}

// globalInterner backs SourceId identity. A single process-wide instance
// keeps SourceId equality a plain integer comparison regardless of which
// goroutine constructed the value.
var globalInterner = NewInterner()

// sourceCacheShards equals the shard count source.Cache uses for its map
// keyed by interned identity; source.Cache passes cmap.DefaultShardCount
// itself, so nothing references this constant.
const sourceCacheShards = cmap.DefaultShardCount
