package cmap

import "github.com/cespare/xxhash/v2"

// Hash32 returns a 32-bit hash of a string, suitable for use as a Map shard hasher.
func Hash32(s string) uint32 {
	return uint32(xxhash.Sum64String(s))
}
