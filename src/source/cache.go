package source

import (
	"fmt"

	"github.com/harbour-build/harbour/src/cmap"
	"github.com/harbour-build/harbour/src/core"
)

// identityHash32 is the shard hasher for a Cache's underlying cmap.Map: keys
// are already the interned SourceId handle, an evenly distributed uint32,
// so no further mixing is needed.
func identityHash32(h uint32) uint32 { return h }

// Cache owns the map SourceId → Source, instantiating entries lazily
// (spec §4.1). It is built on the sharded, awaitable cmap.Map, but Get does
// not wait on a pending entry: concurrent first lookups of the same SourceId
// can each construct a Source, and the map keeps the first one stored.
type Cache struct {
	ctx     core.GlobalContext
	loader  ManifestLoader
	fetcher TarballFetcher
	m       *cmap.Map[uint32, Source]
}

// NewCache constructs an empty Cache. loader and fetcher are the external
// collaborators every Source variant needs (manifest parsing and tarball
// extraction, both out of scope for this module).
func NewCache(ctx core.GlobalContext, loader ManifestLoader, fetcher TarballFetcher) *Cache {
	return &Cache{
		ctx:     ctx,
		loader:  loader,
		fetcher: fetcher,
		m:       cmap.New[uint32, Source](cmap.DefaultShardCount, identityHash32),
	}
}

// Get returns the Source for id, constructing and caching it on first use.
func (c *Cache) Get(id core.SourceId) (Source, error) {
	if v, wait := c.m.Get(id.Handle()); wait == nil {
		return v, nil
	}
	s, err := c.build(id)
	if err != nil {
		return nil, err
	}
	c.m.Set(id.Handle(), s)
	return s, nil
}

func (c *Cache) build(id core.SourceId) (Source, error) {
	switch id.Kind {
	case core.SourcePath:
		return NewPathSource(id.Path, c.loader), nil
	case core.SourceGit:
		return NewGitSource(id.URL, id.Reference, c.ctx.CacheRoot, c.loader), nil
	case core.SourceRegistry:
		root := c.ctx.RegistryURL
		if root == "" {
			return nil, fmt.Errorf("no registry configured for source %s", id)
		}
		return NewRegistrySource(root, id.Registry, c.ctx.CacheRoot, c.loader, c.fetcher), nil
	default:
		return nil, fmt.Errorf("unknown source kind for %s", id)
	}
}
