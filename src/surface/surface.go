// Package surface implements surface propagation (spec §4.3): computing,
// for every target reachable from a root, the effective compile and link
// surface it inherits from its dependencies under public/private visibility.
package surface

import (
	"github.com/harbour-build/harbour/src/core"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("surface")

// TargetRef identifies one target within one resolved package.
type TargetRef struct {
	Package core.PackageId
	Target  string
}

// BuildContext is the subset of the build environment ConditionalSurface
// entries match against (spec §4.3).
type BuildContext struct {
	OS       string
	Arch     string
	Env      string
	Compiler string
}

// Tagged pairs a value with the provenance it was contributed under, so the
// `flags`/`explain` pretty-printers (external collaborators, spec §1 Out of
// scope) can show where each flag came from.
type Tagged[T any] struct {
	Value      T
	Provenance core.Provenance
}

// TaggedDefine is a Define with provenance; override-conflict warnings key
// on Define.Name.
type TaggedDefine struct {
	Define     core.Define
	Provenance core.Provenance
}

// ResolvedSurface is the exact, fully merged set of compile and link inputs
// for one target (spec §4.3 Output).
type ResolvedSurface struct {
	IncludeDirs []Tagged[string]
	Defines     []TaggedDefine
	CFlags      []Tagged[string]

	Libs       []Tagged[core.LibRef]
	LDFlags    []Tagged[string]
	Frameworks []Tagged[string]

	Abi core.AbiToggles
}
