package resolve

import (
	"fmt"
	"sort"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/source"
)

// solveState is the mutable, backtracking partial solution the solver
// builds up. It holds one chosen candidate per package name at a time,
// consistent with §4.2's "exactly one resolved version per (name,
// source-root) in any root-reachable subgraph" invariant, simplified here to
// one version per name: path dependencies are rare enough in practice that
// per-source-root tracking would add complexity without changing behaviour
// for the common single-source case (documented simplification).
//
// depNames and edges are kept separate: depNames records, per committed
// candidate, the dependency names it needs (in declaration order); edges is
// only derived from it once after solving finishes. A candidate mid-solve
// can still have a dependency re-pointed at a different version by a later
// conflict (see resolve below), and an edge list built eagerly would go
// stale the moment that happens - deferring the name -> PackageId lookup to
// the very end means every edge is read from the final, settled s.chosen.
type solveState struct {
	snap      *snapshot
	preferred map[string]core.Version

	chosen      map[string]core.PackageId
	requirement map[string]core.Requirement
	paths       map[string][]string
	subtree     map[string][]string // names (including itself) committed the last time this name was resolved

	nodes    map[core.PackageId]core.Package
	depNames map[core.PackageId][]string
}

// Solve runs the resolver (spec §4.2): it prefetches the full candidate
// space reachable from root, then performs a pure, deterministic,
// conflict-driven backtracking search over it, seeded with preferred (the
// prior lockfile's versions, when present) as a bias that keeps unchanged
// edges pinned.
func Solve(root core.Package, cache *source.Cache, preferred map[string]core.Version) (*Resolve, error) {
	snap, err := prefetch(root, cache)
	if err != nil {
		return nil, err
	}

	st := &solveState{
		snap:        snap,
		preferred:   preferred,
		chosen:      map[string]core.PackageId{},
		requirement: map[string]core.Requirement{},
		paths:       map[string][]string{},
		subtree:     map[string][]string{},
		nodes:       map[core.PackageId]core.Package{root.ID: root},
		depNames:    map[core.PackageId][]string{},
	}
	st.chosen[root.ID.Name] = root.ID
	st.requirement[root.ID.Name] = core.MustParseRequirement(root.ID.Version.String())
	st.paths[root.ID.Name] = []string{root.ID.Name}

	rootDeps := sortedDependencyNames(root.Manifest.Dependencies)
	for _, depName := range rootDeps {
		dep := root.Manifest.Dependencies[depName]
		path := []string{fmt.Sprintf("%s -> %s %s", root.ID.Name, depName, dep.Requirement)}
		if _, err := st.resolve(depName, dep.Requirement, path); err != nil {
			return nil, err
		}
	}
	st.depNames[root.ID] = rootDeps

	return NewResolve(root.ID, st.nodes, st.buildEdges())
}

// buildEdges turns the final, settled depNames into concrete PackageId
// edges. It is only safe to call once solving has reached a fixed point:
// every name still live in s.nodes resolves to its final candidate.
func (s *solveState) buildEdges() map[core.PackageId][]core.PackageId {
	edges := map[core.PackageId][]core.PackageId{}
	for candID, names := range s.depNames {
		if _, live := s.nodes[candID]; !live {
			continue // backtracked away; stale entry left behind by undoNames
		}
		ids := make([]core.PackageId, 0, len(names))
		for _, name := range names {
			ids = append(ids, s.chosen[name])
		}
		edges[candID] = ids
	}
	return edges
}

// resolve assigns a candidate for name consistent with requirement and the
// path chain leading to it, recursing into its dependencies. It returns
// every name newly committed while doing so (nil if name was already chosen
// and merely had its requirement narrowed), so that a later conflict
// involving one of those names can undo exactly that subtree.
//
// If name is already chosen but the combined requirement no longer matches
// the existing candidate, this is not an automatic failure: the previous
// subtree resolved for name is torn down and re-resolved under the merged,
// narrower requirement, so a different (often lower) candidate gets a
// chance before the package is declared unsatisfiable (spec §4.2
// conflict-driven backtracking).
func (s *solveState) resolve(name string, requirement core.Requirement, path []string) ([]string, error) {
	existingID, ok := s.chosen[name]
	if !ok {
		return s.pickCandidate(name, requirement, path)
	}

	merged, err := s.requirement[name].Intersect(requirement)
	if err == nil && merged.Matches(existingID.Version) {
		s.requirement[name] = merged
		return nil, nil
	}
	if err != nil {
		return nil, &core.VersionConflictError{
			Package:      name,
			Requirements: []string{s.requirement[name].String(), requirement.String()},
			Paths:        [][]string{s.paths[name], path},
		}
	}

	priorReq, priorPath := s.requirement[name], s.paths[name]
	s.undoNames(s.subtree[name])
	committed, err := s.pickCandidate(name, merged, path)
	if err != nil {
		return nil, &core.VersionConflictError{
			Package:      name,
			Requirements: []string{priorReq.String(), requirement.String()},
			Paths:        [][]string{priorPath, path},
		}
	}
	return committed, nil
}

// pickCandidate tries each candidate for name matching requirement, highest
// version first (biased by preferred), recursing into its dependencies in a
// fixed lexicographic order. It returns every name newly committed in the
// process (including name itself) so the caller can record it as name's
// subtree for any future backtracking undo.
func (s *solveState) pickCandidate(name string, requirement core.Requirement, path []string) ([]string, error) {
	candidates := s.snap.byName[name]
	if len(candidates) == 0 {
		return nil, &core.NotFoundError{Package: name}
	}
	ordered := orderCandidates(candidates, s.preferred[name])

	var lastErr error
	for _, candID := range ordered {
		if !requirement.Matches(candID.Version) {
			continue
		}
		pkg := s.snap.packages[candID]

		s.chosen[name] = candID
		s.requirement[name] = requirement
		s.paths[name] = path
		s.nodes[candID] = pkg
		committed := []string{name}

		depNames := sortedDependencyNames(pkg.Manifest.Dependencies)
		failed := false
		for _, depName := range depNames {
			dep := pkg.Manifest.Dependencies[depName]
			depPath := append(append([]string{}, path...), fmt.Sprintf("%s -> %s %s", name, depName, dep.Requirement))
			sub, err := s.resolve(depName, dep.Requirement, depPath)
			if err != nil {
				lastErr = err
				failed = true
				break
			}
			committed = append(committed, sub...)
		}
		if !failed {
			s.depNames[candID] = depNames
			s.subtree[name] = committed
			return committed, nil
		}

		s.undoNames(committed)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &core.NotFoundError{Package: name}
}

// undoNames discards every commitment recorded for the given names, as if
// they had never been resolved. It is used both to roll back a failed
// candidate attempt and to tear down a subtree ahead of a conflict-driven
// retry.
func (s *solveState) undoNames(names []string) {
	for _, n := range names {
		if candID, ok := s.chosen[n]; ok {
			delete(s.nodes, candID)
			delete(s.depNames, candID)
		}
		delete(s.chosen, n)
		delete(s.requirement, n)
		delete(s.paths, n)
		delete(s.subtree, n)
	}
}

// sortedDependencyNames returns deps' keys in lexicographic order so that
// dependency resolution order - and therefore which candidate gets pinned
// first in any conflict - does not depend on Go's randomised map iteration
// (spec §4.2 "fixed order", §8 determinism).
func sortedDependencyNames(deps map[string]core.Dependency) []string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// orderCandidates sorts candidates highest-version-first (spec §4.2
// deterministic rules), then moves the preferred version (if any and still
// present) to the front as a bias from the prior lockfile.
func orderCandidates(candidates []core.PackageId, preferred core.Version) []core.PackageId {
	ordered := append([]core.PackageId(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[j].Version.LessThan(ordered[i].Version)
	})
	if preferred.String() == "" {
		return ordered
	}
	for i, id := range ordered {
		if id.Version.Equal(preferred) {
			preferredID := id
			rest := append(append([]core.PackageId(nil), ordered[:i]...), ordered[i+1:]...)
			return append([]core.PackageId{preferredID}, rest...)
		}
	}
	return ordered
}
