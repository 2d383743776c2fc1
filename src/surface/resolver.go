package surface

import (
	"fmt"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/resolve"
)

// Resolver computes ResolvedSurfaces against one Resolve graph and build
// context, memoizing per-target work since the same dependency is usually
// reached from many targets.
type Resolver struct {
	graph *resolve.Resolve
	ctx   BuildContext

	full     map[TargetRef]ResolvedSurface
	exported map[TargetRef]ResolvedSurface
	visiting map[TargetRef]bool
}

// NewResolver constructs a Resolver over graph for the given build context.
func NewResolver(graph *resolve.Resolve, ctx BuildContext) *Resolver {
	return &Resolver{
		graph:    graph,
		ctx:      ctx,
		full:     map[TargetRef]ResolvedSurface{},
		exported: map[TargetRef]ResolvedSurface{},
		visiting: map[TargetRef]bool{},
	}
}

// Resolve returns the full ResolvedSurface for ref: everything needed to
// compile and link that target itself (spec §4.3).
func (r *Resolver) Resolve(ref TargetRef) (ResolvedSurface, error) {
	full, _, err := r.compute(ref)
	return full, err
}

// compute returns (full, exported) for ref, building both in one pass since
// exported is always a subset of full's contributions (spec §4.3
// Propagation rules).
func (r *Resolver) compute(ref TargetRef) (ResolvedSurface, ResolvedSurface, error) {
	if full, ok := r.full[ref]; ok {
		return full, r.exported[ref], nil
	}
	if r.visiting[ref] {
		return ResolvedSurface{}, ResolvedSurface{}, fmt.Errorf("surface propagation cycle at %s:%s", ref.Package, ref.Target)
	}
	r.visiting[ref] = true
	defer delete(r.visiting, ref)

	pkg, ok := r.graph.Package(ref.Package)
	if !ok {
		return ResolvedSurface{}, ResolvedSurface{}, fmt.Errorf("package %s not in resolve graph", ref.Package)
	}
	target, ok := pkg.Target(ref.Target)
	if !ok {
		return ResolvedSurface{}, ResolvedSurface{}, fmt.Errorf("target %s not found in package %s", ref.Target, ref.Package)
	}

	var full, exported ResolvedSurface

	// Own private half first, then own public half (spec §4.3 Propagation rules).
	mergeCompileHalf(&full, target.Surface.Compile.Private, ref, "private")
	mergeLinkHalf(&full, target.Surface.Link.Private, ref, "private")

	mergeCompileHalf(&full, target.Surface.Compile.Public, ref, "surface")
	mergeLinkHalf(&full, target.Surface.Link.Public, ref, "surface")
	mergeCompileHalf(&exported, target.Surface.Compile.Public, ref, "surface")
	mergeLinkHalf(&exported, target.Surface.Link.Public, ref, "surface")

	// Conditional surfaces matching this build context contribute after the
	// unconditional surface, before dependency propagation (spec §4.3). The
	// patch's private half only ever lands in full; its public half lands in
	// both full and exported, same as the unconditional public half, so a
	// matched patch can propagate to dependents.
	for _, cond := range target.Surface.Conditionals {
		if !cond.Match.Matches(r.ctx.OS, r.ctx.Arch, r.ctx.Env, r.ctx.Compiler) {
			continue
		}
		mergeCompileHalf(&full, cond.Patch.Compile.Private, ref, "conditional")
		mergeLinkHalf(&full, cond.Patch.Link.Private, ref, "conditional")

		mergeCompileHalf(&full, cond.Patch.Compile.Public, ref, "conditional")
		mergeLinkHalf(&full, cond.Patch.Link.Public, ref, "conditional")
		mergeCompileHalf(&exported, cond.Patch.Compile.Public, ref, "conditional")
		mergeLinkHalf(&exported, cond.Patch.Link.Public, ref, "conditional")
	}

	if err := mergeAbi(&full.Abi, target.Surface.Abi, ref); err != nil {
		return ResolvedSurface{}, ResolvedSurface{}, err
	}
	exported.Abi = full.Abi

	for _, td := range target.Deps {
		depPkgID, ok := r.graph.DepByName(ref.Package, td.DepPackage)
		if !ok {
			return ResolvedSurface{}, ResolvedSurface{}, fmt.Errorf("%s:%s depends on %q which is not in the resolve graph", ref.Package, ref.Target, td.DepPackage)
		}
		depRef := TargetRef{Package: depPkgID, Target: td.TargetName}
		_, depExported, err := r.compute(depRef)
		if err != nil {
			return ResolvedSurface{}, ResolvedSurface{}, err
		}

		appendCompile(&full, depExported)
		appendLink(&full, depExported)
		if td.CompileVisibility == core.Public {
			appendCompile(&exported, depExported)
		}
		if td.LinkVisibility == core.Public {
			appendLink(&exported, depExported)
		}
		if err := mergeAbi(&full.Abi, depExported.Abi, depRef); err != nil {
			return ResolvedSurface{}, ResolvedSurface{}, err
		}
		exported.Abi = full.Abi
	}

	r.full[ref] = full
	r.exported[ref] = exported
	return full, exported, nil
}
