package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/surface"
	"github.com/harbour-build/harbour/src/toolchain"
)

type fakeToolchain struct {
	family, version string
}

func (f fakeToolchain) Family() string                             { return f.family }
func (f fakeToolchain) VersionString() string                      { return f.version }
func (f fakeToolchain) Compile(in toolchain.CompileInput) toolchain.Command { return toolchain.Command{} }
func (f fakeToolchain) Archive(in toolchain.ArchiveInput) toolchain.Command { return toolchain.Command{} }
func (f fakeToolchain) Link(in toolchain.LinkInput) toolchain.Command       { return toolchain.Command{} }

func TestComputeIdentityCarriesToolchainAndAbi(t *testing.T) {
	pic := true
	resolved := surface.ResolvedSurface{Abi: core.AbiToggles{PIC: &pic, Visibility: "hidden"}}
	id := Compute("x86_64-linux-gnu", fakeToolchain{family: "gcc", version: "12.2.0"}, core.TargetSharedLib, resolved, "12")

	assert.Equal(t, "x86_64-linux-gnu", id.TargetTriple)
	assert.Equal(t, "gcc", id.CompilerFamily)
	assert.Equal(t, "12", id.CompilerMajMin)
	assert.Equal(t, core.TargetSharedLib, id.TargetKind)
	assert.Equal(t, "hidden", id.Visibility)
}

func TestComputeIdentitySortsPublicDefines(t *testing.T) {
	resolved := surface.ResolvedSurface{Defines: []surface.TaggedDefine{
		{Define: core.Define{Name: "ZETA"}},
		{Define: core.Define{Name: "ALPHA", Value: "1", HasValue: true}},
	}}
	id := Compute("", fakeToolchain{}, core.TargetExe, resolved, "")
	assert.Equal(t, []string{"ALPHA=1", "ZETA"}, id.PublicDefines)
}

func TestIdentityFingerprintSensitiveToTriple(t *testing.T) {
	a := Identity{TargetTriple: "x86_64-linux-gnu", CompilerFamily: "gcc", CompilerMajMin: "12"}
	b := Identity{TargetTriple: "aarch64-linux-gnu", CompilerFamily: "gcc", CompilerMajMin: "12"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestIdentityFingerprintSensitiveToAbiToggle(t *testing.T) {
	yes := true
	no := false
	a := Identity{Exceptions: &yes}
	b := Identity{Exceptions: &no}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestIdentityFingerprintStableForEquivalentIdentity(t *testing.T) {
	a := Identity{TargetTriple: "x86_64-linux-gnu", CompilerFamily: "gcc", CompilerMajMin: "12", PublicDefines: []string{"A", "B"}}
	b := Identity{TargetTriple: "x86_64-linux-gnu", CompilerFamily: "gcc", CompilerMajMin: "12", PublicDefines: []string{"A", "B"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestIdentityString(t *testing.T) {
	id := Identity{TargetTriple: "x86_64-linux-gnu", CompilerFamily: "gcc", CompilerMajMin: "12", TargetKind: core.TargetExe}
	assert.Equal(t, "x86_64-linux-gnu/gcc/12/exe", id.String())
}
