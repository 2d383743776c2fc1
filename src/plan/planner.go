package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/resolve"
	"github.com/harbour-build/harbour/src/surface"
	"github.com/harbour-build/harbour/src/toolchain"
)

// Planner generates an ordered BuildPlan from a Resolve graph and the
// ResolvedSurfaces computed for every target reachable from a root (spec §4.6).
type Planner struct {
	Graph    *resolve.Resolve
	Resolver *surface.Resolver
	Toolchain toolchain.Toolchain
	OutDir   string
	Profile  toolchain.ProfileSettings
}

// archivePath is where a StaticLib target's archive lives under the output
// directory (spec §6 Filesystem layout: ".harbour/target/<profile>/deps/<pkg>/...").
func (p *Planner) archivePath(pkgName, targetName string) string {
	return filepath.Join(p.OutDir, "deps", pkgName, targetName+".a")
}

func (p *Planner) imagePath(pkgName, targetName string, kind core.TargetKind) string {
	ext := ""
	if kind == core.TargetSharedLib {
		ext = ".so"
	}
	return filepath.Join(p.OutDir, "bin", pkgName, targetName+ext)
}

func objPath(outDir, pkgName, srcFile string, flags []string) string {
	h := sha256.New()
	h.Write([]byte(srcFile))
	for _, f := range flags {
		h.Write([]byte(f))
	}
	sum := hex.EncodeToString(h.Sum(nil))[:16]
	return filepath.Join(outDir, "deps", pkgName, sum+".o")
}

// Plan builds the BuildPlan for everything reachable from root (spec §4.6 Algorithm).
func (p *Planner) Plan(root surface.TargetRef) (*BuildPlan, error) {
	order, err := p.postOrder(root)
	if err != nil {
		return nil, err
	}

	var steps []Step
	for _, ref := range order {
		pkg, ok := p.Graph.Package(ref.Package)
		if !ok {
			return nil, fmt.Errorf("package %s missing from resolve graph", ref.Package)
		}
		target, ok := pkg.Target(ref.Target)
		if !ok {
			return nil, fmt.Errorf("target %s missing from package %s", ref.Target, ref.Package)
		}

		switch target.Recipe {
		case core.RecipeCMake, core.RecipeCustom:
			steps = append(steps, Step{Kind: StepExternal, External: &ExternalStep{
				ID:              stepID(ref, "external"),
				Target:          ref,
				Recipe:          target.Recipe,
				Command:         target.RecipeCommand,
				Workdir:         target.RecipeWorkdir,
				DeclaredOutputs: target.DeclaredOutputs,
			}})
			continue
		}

		if target.Kind == core.TargetHeaderOnly {
			continue // contributes no steps, only surfaces (spec §4.6)
		}

		srcs, err := ExpandGlobs(pkg.Root, target.Sources)
		if err != nil {
			return nil, err
		}
		if len(srcs) == 0 {
			return nil, &core.NoSourcesError{Prov: core.Provenance{Operation: "plan", Package: ref.Package.Name, Target: ref.Target}}
		}

		resolved, err := p.Resolver.Resolve(ref)
		if err != nil {
			return nil, err
		}

		std := target.CStd
		if target.Language == core.LangCpp {
			std = target.CppStd
		}

		includeDirs := tagValues(resolved.IncludeDirs)
		defines := formatDefines(resolved.Defines)
		cflags := tagValues(resolved.CFlags)

		var objs []string
		for _, src := range srcs {
			obj := objPath(p.OutDir, ref.Package.Name, src, append(append([]string{}, cflags...), includeDirs...))
			depFile := obj[:len(obj)-len(filepath.Ext(obj))] + ".d"
			steps = append(steps, Step{Kind: StepCompile, Compile: &CompileStep{
				ID:      stepID(ref, "compile:"+src),
				Target:  ref,
				SrcFile: src,
				ObjOut:  obj,
				Toolchain: toolchain.CompileInput{
					SrcFile:     src,
					ObjOut:      obj,
					DepFileOut:  depFile,
					IncludeDirs: includeDirs,
					Defines:     defines,
					CFlags:      cflags,
					Std:         std,
					Language:    target.Language,
					Profile:     p.Profile,
					Abi:         resolved.Abi,
				},
			}})
			objs = append(objs, obj)
		}

		switch target.Kind {
		case core.TargetStaticLib:
			steps = append(steps, Step{Kind: StepArchive, Archive: &ArchiveStep{
				ID:         stepID(ref, "archive"),
				Target:     ref,
				Objs:       objs,
				ArchiveOut: p.archivePath(ref.Package.Name, ref.Target),
			}})
		case core.TargetExe, core.TargetSharedLib:
			archives, libs := splitLibs(resolved.Libs, p)
			steps = append(steps, Step{Kind: StepLink, Link: &LinkStep{
				ID:       stepID(ref, "link"),
				Target:   ref,
				ImageOut: p.imagePath(ref.Package.Name, ref.Target, target.Kind),
				Toolchain: toolchain.LinkInput{
					Objs:     objs,
					Archives: archives,
					Libs:     libs,
					LDFlags:  tagValues(resolved.LDFlags),
					ImageOut: p.imagePath(ref.Package.Name, ref.Target, target.Kind),
					Kind:     target.Kind,
					Profile:  p.Profile,
					Abi:      resolved.Abi,
				},
			}})
		}
	}
	return &BuildPlan{Steps: steps}, nil
}

// splitLibs separates a resolved surface's libs into archive paths
// (LibPackageTarget entries resolved against the planner's output layout)
// and everything else, which stays a LibRef for the toolchain to render.
func splitLibs(libs []surface.Tagged[core.LibRef], p *Planner) (archives []string, rest []core.LibRef) {
	for _, l := range libs {
		if l.Value.Kind == core.LibPackageTarget {
			archives = append(archives, p.archivePath(l.Value.Name, l.Value.Target))
			continue
		}
		rest = append(rest, l.Value)
	}
	return archives, rest
}

func tagValues[T any](in []surface.Tagged[T]) []T {
	out := make([]T, 0, len(in))
	for _, t := range in {
		out = append(out, t.Value)
	}
	return out
}

func formatDefines(in []surface.TaggedDefine) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d.Define.HasValue {
			out = append(out, fmt.Sprintf("%s=%s", d.Define.Name, d.Define.Value))
		} else {
			out = append(out, d.Define.Name)
		}
	}
	return out
}

func stepID(ref surface.TargetRef, suffix string) string {
	return fmt.Sprintf("%s:%s:%s", ref.Package, ref.Target, suffix)
}

// postOrder returns every target reachable from root, dependencies before
// dependents, via a depth-first walk of TargetDep edges (spec §4.6: targets
// processed "for each package in topological order ... for each of its
// targets that is reachable from the root target").
func (p *Planner) postOrder(root surface.TargetRef) ([]surface.TargetRef, error) {
	visited := map[surface.TargetRef]int{} // 0 unvisited, 1 visiting, 2 done
	var order []surface.TargetRef

	var visit func(ref surface.TargetRef) error
	visit = func(ref surface.TargetRef) error {
		switch visited[ref] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("target dependency cycle at %s:%s", ref.Package.Name, ref.Target)
		}
		visited[ref] = 1
		pkg, ok := p.Graph.Package(ref.Package)
		if !ok {
			return fmt.Errorf("package %s missing from resolve graph", ref.Package)
		}
		target, ok := pkg.Target(ref.Target)
		if !ok {
			return fmt.Errorf("target %s missing from package %s", ref.Target, ref.Package)
		}
		// Deterministic child order, independent of manifest map iteration order.
		deps := append([]core.TargetDep(nil), target.Deps...)
		sort.Slice(deps, func(i, j int) bool {
			if deps[i].DepPackage != deps[j].DepPackage {
				return deps[i].DepPackage < deps[j].DepPackage
			}
			return deps[i].TargetName < deps[j].TargetName
		})
		for _, td := range deps {
			depPkgID, ok := p.Graph.DepByName(ref.Package, td.DepPackage)
			if !ok {
				return fmt.Errorf("%s:%s depends on %q which is not in the resolve graph", ref.Package, ref.Target, td.DepPackage)
			}
			if err := visit(surface.TargetRef{Package: depPkgID, Target: td.TargetName}); err != nil {
				return err
			}
		}
		visited[ref] = 2
		order = append(order, ref)
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}
