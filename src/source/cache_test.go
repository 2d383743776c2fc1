package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbour-build/harbour/src/core"
)

func TestCacheGetBuildsPathSourceOnce(t *testing.T) {
	c := NewCache(core.GlobalContext{}, nil, nil)
	id := core.NewPathSourceId("/pkgs/foo")

	s1, err := c.Get(id)
	require.NoError(t, err)
	s2, err := c.Get(id)
	require.NoError(t, err)
	assert.Same(t, s1, s2, "repeated Get for the same SourceId must return the cached instance")
}

func TestCacheGetDistinguishesDifferentSourceIds(t *testing.T) {
	c := NewCache(core.GlobalContext{}, nil, nil)
	a, err := c.Get(core.NewPathSourceId("/pkgs/foo"))
	require.NoError(t, err)
	b, err := c.Get(core.NewPathSourceId("/pkgs/bar"))
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestCacheGetRegistryWithoutConfiguredURLErrors(t *testing.T) {
	c := NewCache(core.GlobalContext{}, nil, nil)
	_, err := c.Get(core.NewRegistrySourceId(""))
	assert.Error(t, err)
}

func TestCacheGetRegistryWithConfiguredURLSucceeds(t *testing.T) {
	c := NewCache(core.GlobalContext{RegistryURL: "/registry"}, nil, nil)
	s, err := c.Get(core.NewRegistrySourceId(""))
	require.NoError(t, err)
	_, ok := s.(*RegistrySource)
	assert.True(t, ok)
}

func TestCacheGetBuildsGitSource(t *testing.T) {
	c := NewCache(core.GlobalContext{}, nil, nil)
	id := core.NewGitSourceId("https://example.com/foo.git", core.GitReference{Kind: core.GitTag, Value: "v1.0.0"})
	s, err := c.Get(id)
	require.NoError(t, err)
	_, ok := s.(*GitSource)
	assert.True(t, ok)
}
