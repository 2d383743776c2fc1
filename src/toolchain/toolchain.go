// Package toolchain abstracts compiler-family command assembly (spec §4.4):
// GCC-style (GCC, Clang, Apple Clang) and MSVC-style variants, both behind
// one Toolchain interface. Command generation is pure: no subprocesses are
// spawned here except during family/version detection.
package toolchain

import (
	"github.com/harbour-build/harbour/src/core"
)

// Command is the fully assembled invocation for one step.
type Command struct {
	Program string
	Args    []string
	Env     []string
}

// ProfileSettings carries the build-profile knobs that affect flag
// generation (spec §4.4 Command assembly).
type ProfileSettings struct {
	OptLevel   string // "0".."3", "s", "z" (GCC-style); mapped per-family
	DebugInfo  bool
	Sanitizers []string
}

// CompileInput describes one Compile step in toolchain-neutral terms; the
// build planner fills this in from a ResolvedSurface (spec §4.6).
type CompileInput struct {
	SrcFile     string
	ObjOut      string
	DepFileOut  string // header-dependency output, e.g. GCC's -MMD -MF target
	IncludeDirs []string
	Defines     []string // pre-formatted "NAME" or "NAME=VALUE"
	CFlags      []string
	Std         string
	Language    core.Language
	Profile     ProfileSettings
	Abi         core.AbiToggles
}

// ArchiveInput describes one Archive step.
type ArchiveInput struct {
	Objs       []string
	ArchiveOut string
}

// LinkInput describes one Link step.
type LinkInput struct {
	Objs     []string
	Archives []string // transitive archives, already in link order
	Libs     []core.LibRef
	LDFlags  []string
	ImageOut string
	Kind     core.TargetKind // TargetExe or TargetSharedLib
	Profile  ProfileSettings
	Abi      core.AbiToggles
}

// Toolchain yields the command to execute for any compile, archive or link
// step, plus the identity used to seed the toolchain fingerprint (spec §4.7).
type Toolchain interface {
	Family() string
	VersionString() string
	Compile(in CompileInput) Command
	Archive(in ArchiveInput) Command
	Link(in LinkInput) Command
}
