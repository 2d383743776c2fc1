// Package plan implements the build planner (spec §4.6): turning a Resolve
// graph plus per-target ResolvedSurfaces into an ordered BuildPlan of
// Compile, Archive, Link and External steps.
package plan

import (
	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/surface"
	"github.com/harbour-build/harbour/src/toolchain"
)

// StepKind distinguishes the four step variants a BuildPlan can contain (spec §3).
type StepKind int

const (
	StepCompile StepKind = iota
	StepArchive
	StepLink
	StepExternal
)

// CompileStep produces one object file from one source file.
type CompileStep struct {
	ID       string
	Target   surface.TargetRef
	SrcFile  string
	ObjOut   string
	Toolchain toolchain.CompileInput
}

// ArchiveStep produces a static archive from a set of object files.
type ArchiveStep struct {
	ID         string
	Target     surface.TargetRef
	Objs       []string
	ArchiveOut string
}

// LinkStep produces an executable or shared object.
type LinkStep struct {
	ID        string
	Target    surface.TargetRef
	ImageOut  string
	Toolchain toolchain.LinkInput
}

// ExternalStep runs a CMake or Custom recipe (spec §4.6).
type ExternalStep struct {
	ID              string
	Target          surface.TargetRef
	Recipe          core.Recipe
	Command         []string
	Workdir         string
	DeclaredOutputs []string
}

// Step is a tagged union over the four step variants; exactly one of the
// pointer fields matching Kind is non-nil.
type Step struct {
	Kind     StepKind
	Compile  *CompileStep
	Archive  *ArchiveStep
	Link     *LinkStep
	External *ExternalStep
}

// BuildPlan is the ordered sequence of steps the executor runs (spec §3).
// It is immutable once produced.
type BuildPlan struct {
	Steps []Step
}
