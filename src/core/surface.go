package core

// Define is a preprocessor define, optionally carrying a value ("NAME" vs
// "NAME=VALUE"). The manifest loader accepts three on-disk spellings for
// this (spec §6) but by the time a Surface exists it is always this shape.
type Define struct {
	Name  string
	Value string // empty when the define has no value
	HasValue bool
}

// LibKind distinguishes the four ways a link-time library can be named.
type LibKind int

const (
	LibSystem LibKind = iota
	LibFramework
	LibPath
	LibPackageTarget
)

// LibRef is one entry in a LinkSurface's libs list.
type LibRef struct {
	Kind LibKind
	Name string // system/framework name, or filesystem path, or package name
	// Target is set only when Kind == LibPackageTarget: the target within
	// Name (the dependency package) that produces the archive/shared object.
	Target string
}

// CompileHalf holds one visibility half (public or private) of a target's
// compile surface.
type CompileHalf struct {
	IncludeDirs []string // ordered, deduplicated on absolute-path equality
	Defines     []Define // ordered, keyed by name
	CFlags      []string // ordered, duplicates allowed
}

// CompileSurface is a target's full compile contract.
type CompileSurface struct {
	Public  CompileHalf
	Private CompileHalf
}

// LinkHalf holds one visibility half (public or private) of a target's link surface.
type LinkHalf struct {
	Libs       []LibRef
	LDFlags    []string
	Frameworks []string // deduplicated
}

// LinkSurface is a target's full link contract.
type LinkSurface struct {
	Public  LinkHalf
	Private LinkHalf
}

// MSVCRuntime selects the MSVC C runtime linkage.
type MSVCRuntime int

const (
	MSVCRuntimeUnspecified MSVCRuntime = iota
	MSVCRuntimeDynamic
	MSVCRuntimeStatic
)

// CppStdlib selects the C++ standard library implementation.
type CppStdlib int

const (
	CppStdlibUnspecified CppStdlib = iota
	CppStdlibLibstdcxx
	CppStdlibLibcxx
)

// AbiToggles are the binary-compatibility-affecting switches a target can
// set. A zero value means "unspecified"; merge resolves unspecified against
// an explicit setting without conflict (spec §4.3).
type AbiToggles struct {
	PIC          *bool
	Visibility   string // e.g. "default", "hidden"
	MSVCRuntime  MSVCRuntime
	CppStdlib    CppStdlib
	Exceptions   *bool
	RTTI         *bool
}

// ConditionMatch filters a ConditionalSurface entry; any empty field matches everything.
type ConditionMatch struct {
	OS       []string
	Arch     []string
	Env      []string
	Compiler []string
}

// Matches reports whether the build context's os/arch/env/compiler-family
// satisfies every non-empty field of m.
func (m ConditionMatch) Matches(os, arch, env, compiler string) bool {
	return matchesAny(m.OS, os) && matchesAny(m.Arch, arch) && matchesAny(m.Env, env) && matchesAny(m.Compiler, compiler)
}

func matchesAny(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// SurfacePatch is the partial surface contributed when a ConditionalSurface's
// match succeeds. It carries the same public/private split as a target's
// unconditional surface, so a matched patch's public half can propagate to
// dependents exactly as the unconditional public half does (spec §4.3:
// "matching entries contribute their patch after the unconditional surface
// of the same visibility, before propagation"). Any half may be left empty.
type SurfacePatch struct {
	Compile CompileSurface
	Link    LinkSurface
}

// ConditionalSurface pairs a match predicate with the patch it contributes.
type ConditionalSurface struct {
	Match ConditionMatch
	Patch SurfacePatch
}

// Surface is the complete build contract attached to a Target: unconditional
// public/private halves plus any conditional patches layered on top.
type Surface struct {
	Compile      CompileSurface
	Link         LinkSurface
	Abi          AbiToggles
	Conditionals []ConditionalSurface
}
