// Package resolve implements the version solver and the Resolve DAG it
// produces (spec §4.2), plus lockfile serialization and freshness checking.
package resolve

import (
	"sort"

	"github.com/harbour-build/harbour/src/core"
)

// Resolve is the acyclic directed graph of resolved packages produced by the
// solver (spec §3). It is immutable once constructed.
type Resolve struct {
	Root  core.PackageId
	nodes map[core.PackageId]core.Package
	edges map[core.PackageId][]core.PackageId
	order []core.PackageId
}

// NewResolve builds a Resolve from a root id, the set of resolved packages,
// and the dependency edges selected for each of them. It checks the graph is
// acyclic and computes a deterministic topological order, tie-broken on
// PackageId (spec §4.2).
func NewResolve(root core.PackageId, nodes map[core.PackageId]core.Package, edges map[core.PackageId][]core.PackageId) (*Resolve, error) {
	r := &Resolve{Root: root, nodes: nodes, edges: edges}
	order, err := topoSort(nodes, edges)
	if err != nil {
		return nil, err
	}
	r.order = order
	return r, nil
}

// Package returns the loaded Package for id.
func (r *Resolve) Package(id core.PackageId) (core.Package, bool) {
	p, ok := r.nodes[id]
	return p, ok
}

// Deps returns the dependency edges selected for id, in the order the solver recorded them.
func (r *Resolve) Deps(id core.PackageId) []core.PackageId {
	return r.edges[id]
}

// DepByName finds the resolved PackageId among id's selected dependencies
// with the given package name, as referenced by a Target's TargetDep.
func (r *Resolve) DepByName(id core.PackageId, name string) (core.PackageId, bool) {
	for _, dep := range r.edges[id] {
		if dep.Name == name {
			return dep, true
		}
	}
	return core.PackageId{}, false
}

// Order returns every node in deterministic topological order (dependencies before dependents).
func (r *Resolve) Order() []core.PackageId {
	return append([]core.PackageId(nil), r.order...)
}

// Nodes returns every PackageId in the graph, in no particular order.
func (r *Resolve) Nodes() []core.PackageId {
	ids := make([]core.PackageId, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	return ids
}

// topoSort implements Kahn's algorithm over the edges map (node -> its
// dependencies), breaking ties deterministically by PackageId order so the
// same graph always produces the same order (spec §4.2, §5 Determinism).
// Dependencies sort before dependents in the returned order.
func topoSort(nodes map[core.PackageId]core.Package, edges map[core.PackageId][]core.PackageId) ([]core.PackageId, error) {
	// inDegree here counts, for each node, how many of its own dependencies
	// are still unordered, since we want dependencies to come out first.
	inDegree := make(map[core.PackageId]int, len(nodes))
	dependents := make(map[core.PackageId][]core.PackageId, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for from, deps := range edges {
		for _, to := range deps {
			if _, ok := nodes[to]; !ok {
				continue
			}
			dependents[to] = append(dependents[to], from)
			inDegree[from]++
		}
	}

	var ready []core.PackageId
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sortIds(ready)

	order := make([]core.PackageId, 0, len(nodes))
	for len(ready) > 0 {
		sortIds(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, cycleError(nodes, edges, order)
	}
	return order, nil
}

func sortIds(ids []core.PackageId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// cycleError finds one cycle among the nodes that topoSort failed to order,
// for use in the CycleDetected error's provenance.
func cycleError(nodes map[core.PackageId]core.Package, edges map[core.PackageId][]core.PackageId, ordered []core.PackageId) error {
	done := make(map[core.PackageId]bool, len(ordered))
	for _, id := range ordered {
		done[id] = true
	}
	var remaining []core.PackageId
	for id := range nodes {
		if !done[id] {
			remaining = append(remaining, id)
		}
	}
	sortIds(remaining)

	visited := map[core.PackageId]int{} // 0 unvisited, 1 in-progress, 2 done
	var path []core.PackageId
	var cycle []core.PackageId
	var visit func(id core.PackageId) bool
	visit = func(id core.PackageId) bool {
		if done[id] {
			return false
		}
		if visited[id] == 1 {
			// Found the back-edge; extract the cycle from path.
			for i, p := range path {
				if p == id {
					cycle = append([]core.PackageId(nil), path[i:]...)
					cycle = append(cycle, id)
					return true
				}
			}
			return true
		}
		if visited[id] == 2 {
			return false
		}
		visited[id] = 1
		path = append(path, id)
		for _, dep := range edges[id] {
			if _, ok := nodes[dep]; !ok {
				continue
			}
			if visit(dep) {
				return true
			}
		}
		path = path[:len(path)-1]
		visited[id] = 2
		return false
	}
	for _, id := range remaining {
		if visit(id) {
			break
		}
	}
	return &core.CycleDetectedError{Cycle: cycle}
}
