// Package abi implements ABI identity computation and the C++ compatibility
// validator that runs after resolution, before planning (spec §4.5).
package abi

import (
	"sort"
	"strings"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/fingerprint"
	"github.com/harbour-build/harbour/src/surface"
	"github.com/harbour-build/harbour/src/toolchain"
)

// Identity is the ordered tuple of binary-compatibility-affecting parameters
// for one target (spec §3): two nodes with matching Fingerprints produce
// interchangeable binaries.
type Identity struct {
	TargetTriple   string
	CompilerFamily string
	CompilerMajMin string
	TargetKind     core.TargetKind
	PIC            *bool
	Visibility     string
	PublicDefines  []string // sorted
	CppStdlib      core.CppStdlib
	Exceptions     *bool
	RTTI           *bool
	MSVCRuntime    core.MSVCRuntime
}

// Fingerprint hashes an Identity into its canonical digest.
func (id Identity) Fingerprint() fingerprint.Digest {
	toggles := core.AbiToggles{
		PIC:         id.PIC,
		Visibility:  id.Visibility,
		MSVCRuntime: id.MSVCRuntime,
		CppStdlib:   id.CppStdlib,
		Exceptions:  id.Exceptions,
		RTTI:        id.RTTI,
	}
	// Reuse the fingerprint package's ABI-toggle encoding so the compile
	// fingerprint and the ABI identity agree on what "same ABI" means.
	defines := append([]string(nil), id.PublicDefines...)
	sort.Strings(defines)
	return fingerprint.Compile("", nil, nil, defines, id.CompilerMajMin, toggles, fingerprint.Toolchain(id.CompilerFamily, id.CompilerMajMin, id.TargetTriple, string(id.TargetKind.String())), "")
}

// Compute derives the ABI identity of one target from its resolved surface
// and the active toolchain (spec §3 "ABI Identity").
func Compute(targetTriple string, tc toolchain.Toolchain, kind core.TargetKind, resolved surface.ResolvedSurface, compilerMajMin string) Identity {
	var defines []string
	for _, d := range resolved.Defines {
		if d.Define.HasValue {
			defines = append(defines, d.Define.Name+"="+d.Define.Value)
		} else {
			defines = append(defines, d.Define.Name)
		}
	}
	sort.Strings(defines)
	return Identity{
		TargetTriple:   targetTriple,
		CompilerFamily: tc.Family(),
		CompilerMajMin: compilerMajMin,
		TargetKind:     kind,
		PIC:            resolved.Abi.PIC,
		Visibility:     resolved.Abi.Visibility,
		PublicDefines:  defines,
		CppStdlib:      resolved.Abi.CppStdlib,
		Exceptions:     resolved.Abi.Exceptions,
		RTTI:           resolved.Abi.RTTI,
		MSVCRuntime:    resolved.Abi.MSVCRuntime,
	}
}

func (id Identity) String() string {
	var b strings.Builder
	b.WriteString(id.TargetTriple)
	b.WriteByte('/')
	b.WriteString(id.CompilerFamily)
	b.WriteByte('/')
	b.WriteString(id.CompilerMajMin)
	b.WriteByte('/')
	b.WriteString(id.TargetKind.String())
	return b.String()
}
