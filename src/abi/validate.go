package abi

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/resolve"
	"github.com/harbour-build/harbour/src/surface"
)

// Validator runs the C++ constraint validation pass (spec §4.5) over every
// target reachable from a root: determining the effective C++ standard and
// checking that exceptions, RTTI, and the C++ runtime are uniform across the
// reachable graph.
type Validator struct {
	Graph    *resolve.Resolve
	Resolver *surface.Resolver
	// CLIStdOverride, if non-empty, participates in the effective-standard max.
	CLIStdOverride string
	// WorkspaceDefaultStd is the workspace-wide default C++ standard, if any.
	WorkspaceDefaultStd string
}

type reachableTarget struct {
	ref    surface.TargetRef
	target core.Target
}

// Validate walks the targets reachable from root and returns a *multierror
// aggregating every CppStdConflictError and AbiMismatchError found, or nil
// if the graph is consistent.
func (v *Validator) Validate(root surface.TargetRef) error {
	targets, err := v.reachable(root)
	if err != nil {
		return err
	}

	var cppTargets []reachableTarget
	for _, rt := range targets {
		if rt.target.Language == core.LangCpp {
			cppTargets = append(cppTargets, rt)
		}
	}
	if len(cppTargets) == 0 {
		return nil
	}

	effective := stdRank(v.WorkspaceDefaultStd)
	if r := stdRank(v.CLIStdOverride); r > effective {
		effective = r
	}
	for _, rt := range cppTargets {
		if r := stdRank(rt.target.CppStd); r > effective {
			effective = r
		}
	}

	var result *multierror.Error
	for _, rt := range cppTargets {
		if stdRank(rt.target.CppStd) > effective {
			result = multierror.Append(result, &core.CppStdConflictError{
				Prov:      core.Provenance{Operation: "abi-validate", Package: rt.ref.Package.Name, Target: rt.ref.Target},
				Requested: rt.target.CppStd,
				Effective: rankStd(effective),
			})
		}
	}

	if err := v.checkUniform(cppTargets); err != nil {
		result = multierror.Append(result, err)
	}

	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}

// checkUniform verifies exceptions, RTTI, and the C++ runtime toggles agree
// across every reachable C++ target (spec §4.5 step 3).
func (v *Validator) checkUniform(targets []reachableTarget) error {
	var result *multierror.Error

	var baseline *core.AbiToggles
	var baselineRef surface.TargetRef

	for _, rt := range targets {
		resolved, err := v.Resolver.Resolve(rt.ref)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		abi := resolved.Abi
		if baseline == nil {
			baseline = &abi
			baselineRef = rt.ref
			continue
		}
		if mismatch := diffToggle("exceptions", baseline.Exceptions, abi.Exceptions); mismatch != "" {
			result = multierror.Append(result, &core.AbiMismatchError{
				Toggle: "exceptions",
				A:      fmt.Sprintf("%s:%s", baselineRef.Package.Name, baselineRef.Target),
				B:      fmt.Sprintf("%s:%s (%s)", rt.ref.Package.Name, rt.ref.Target, mismatch),
			})
		}
		if mismatch := diffToggle("rtti", baseline.RTTI, abi.RTTI); mismatch != "" {
			result = multierror.Append(result, &core.AbiMismatchError{
				Toggle: "rtti",
				A:      fmt.Sprintf("%s:%s", baselineRef.Package.Name, baselineRef.Target),
				B:      fmt.Sprintf("%s:%s (%s)", rt.ref.Package.Name, rt.ref.Target, mismatch),
			})
		}
		if baseline.CppStdlib != abi.CppStdlib {
			result = multierror.Append(result, &core.AbiMismatchError{
				Toggle: "cpp-runtime",
				A:      fmt.Sprintf("%s:%s", baselineRef.Package.Name, baselineRef.Target),
				B:      fmt.Sprintf("%s:%s", rt.ref.Package.Name, rt.ref.Target),
			})
		}
		if baseline.MSVCRuntime != abi.MSVCRuntime {
			result = multierror.Append(result, &core.AbiMismatchError{
				Toggle: "msvc-runtime",
				A:      fmt.Sprintf("%s:%s", baselineRef.Package.Name, baselineRef.Target),
				B:      fmt.Sprintf("%s:%s", rt.ref.Package.Name, rt.ref.Target),
			})
		}
	}
	if result == nil {
		return nil
	}
	return result.ErrorOrNil()
}

func diffToggle(name string, a, b *bool) string {
	if a == nil || b == nil {
		return ""
	}
	if *a != *b {
		return fmt.Sprintf("%s=%v vs %v", name, *a, *b)
	}
	return ""
}

func stdRank(std string) int {
	if std == "" {
		return 0
	}
	n, err := strconv.Atoi(std)
	if err != nil {
		return 0
	}
	return n
}

func rankStd(rank int) string {
	if rank == 0 {
		return ""
	}
	return strconv.Itoa(rank)
}

// reachable collects every target reachable from root, deterministically
// ordered (spec §4.6 reuses this same traversal shape for planning).
func (v *Validator) reachable(root surface.TargetRef) ([]reachableTarget, error) {
	visited := map[surface.TargetRef]bool{}
	var order []reachableTarget

	var visit func(ref surface.TargetRef) error
	visit = func(ref surface.TargetRef) error {
		if visited[ref] {
			return nil
		}
		visited[ref] = true
		pkg, ok := v.Graph.Package(ref.Package)
		if !ok {
			return fmt.Errorf("package %s missing from resolve graph", ref.Package)
		}
		target, ok := pkg.Target(ref.Target)
		if !ok {
			return fmt.Errorf("target %s missing from package %s", ref.Target, ref.Package)
		}
		order = append(order, reachableTarget{ref: ref, target: target})

		deps := append([]core.TargetDep(nil), target.Deps...)
		sort.Slice(deps, func(i, j int) bool {
			if deps[i].DepPackage != deps[j].DepPackage {
				return deps[i].DepPackage < deps[j].DepPackage
			}
			return deps[i].TargetName < deps[j].TargetName
		})
		for _, td := range deps {
			depPkgID, ok := v.Graph.DepByName(ref.Package, td.DepPackage)
			if !ok {
				return fmt.Errorf("%s:%s depends on %q which is not in the resolve graph", ref.Package, ref.Target, td.DepPackage)
			}
			if err := visit(surface.TargetRef{Package: depPkgID, Target: td.TargetName}); err != nil {
				return err
			}
		}
		return nil
	}

	if err := visit(root); err != nil {
		return nil, err
	}
	return order, nil
}
