package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageIdString(t *testing.T) {
	id := NewPackageId("fmtlib", MustParseVersion("9.1.0"), NewPathSourceId("/tmp/fmt"))
	assert.Equal(t, "fmtlib@9.1.0", id.String())
}

func TestPackageIdLessByName(t *testing.T) {
	a := NewPackageId("alpha", MustParseVersion("1.0.0"), NewRegistrySourceId(""))
	b := NewPackageId("beta", MustParseVersion("1.0.0"), NewRegistrySourceId(""))
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestPackageIdLessBySourceWhenNamesEqual(t *testing.T) {
	a := NewPackageId("fmtlib", MustParseVersion("1.0.0"), NewPathSourceId("/a"))
	b := NewPackageId("fmtlib", MustParseVersion("1.0.0"), NewPathSourceId("/b"))
	assert.True(t, a.Less(b))
}

func TestPackageIdLessByVersionHighestFirst(t *testing.T) {
	a := NewPackageId("fmtlib", MustParseVersion("2.0.0"), NewRegistrySourceId(""))
	b := NewPackageId("fmtlib", MustParseVersion("1.0.0"), NewRegistrySourceId(""))
	assert.True(t, a.Less(b), "higher version should sort first")
	assert.False(t, b.Less(a))
}
