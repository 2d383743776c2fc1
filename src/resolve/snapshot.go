package resolve

import (
	"fmt"
	"path/filepath"

	"github.com/harbour-build/harbour/src/core"
	"github.com/harbour-build/harbour/src/source"
)

// snapshot is the pure, immutable candidate space the solver consumes
// (spec §4.2 Purity): every package reachable from the root, keyed by
// PackageId, plus a per-name list of candidates in discovery order (the
// solver sorts them when it picks one).
// It is built entirely during the prefetch phase; the solver loop performs
// no further source I/O.
type snapshot struct {
	packages map[core.PackageId]core.Package
	byName   map[string][]core.PackageId
}

func newSnapshot() *snapshot {
	return &snapshot{packages: map[core.PackageId]core.Package{}, byName: map[string][]core.PackageId{}}
}

func (s *snapshot) add(pkg core.Package) {
	if _, ok := s.packages[pkg.ID]; ok {
		return
	}
	s.packages[pkg.ID] = pkg
	s.byName[pkg.ID.Name] = append(s.byName[pkg.ID.Name], pkg.ID)
}

// resolveSourceID turns a dependency's requested SourceSpec into a concrete
// SourceId, resolving relative path specs against the referencing package's
// root directory.
func resolveSourceID(referencingRoot string, spec core.SourceSpec) (core.SourceId, error) {
	switch spec.Kind {
	case core.SourcePath:
		abs := spec.Path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(referencingRoot, spec.Path)
		}
		return core.NewPathSourceId(filepath.Clean(abs)), nil
	case core.SourceGit:
		return core.NewGitSourceId(spec.GitURL, spec.GitRef), nil
	case core.SourceRegistry:
		return core.NewRegistrySourceId(spec.Registry), nil
	default:
		return core.SourceId{}, fmt.Errorf("unrecognised source spec kind %v", spec.Kind)
	}
}

// prefetch walks the dependency closure reachable from root, querying each
// distinct source for candidates and loading every candidate's manifest so
// its own dependencies can be discovered in turn. This is the bounded phase
// where all network/disk I/O for resolution happens (spec §4.2 Purity);
// everything after this point is pure.
func prefetch(root core.Package, cache *source.Cache) (*snapshot, error) {
	snap := newSnapshot()
	snap.add(root)

	type work struct {
		pkg core.Package
	}
	queue := []work{{pkg: root}}
	visitedDeps := map[string]bool{} // "packageID|depName" already expanded

	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]

		for depName, dep := range w.pkg.Manifest.Dependencies {
			key := w.pkg.ID.String() + "|" + depName
			if visitedDeps[key] {
				continue
			}
			visitedDeps[key] = true

			srcID, err := resolveSourceID(w.pkg.Root, dep.Source)
			if err != nil {
				return nil, err
			}
			src, err := cache.Get(srcID)
			if err != nil {
				return nil, &core.SourceUnavailableError{SourceID: srcID, Cause: err}
			}
			wildcard, _ := core.ParseRequirement("*")
			handles, err := src.Query(depName, wildcard)
			if err != nil {
				return nil, &core.SourceUnavailableError{SourceID: srcID, Cause: err}
			}
			if len(handles) == 0 {
				return nil, &core.NotFoundError{Package: depName}
			}
			for _, h := range handles {
				pkg, err := src.LoadPackage(h)
				if err != nil {
					return nil, &core.SourceUnavailableError{SourceID: srcID, Cause: err}
				}
				if _, already := snap.packages[pkg.ID]; already {
					continue
				}
				snap.add(pkg)
				queue = append(queue, work{pkg: pkg})
			}
		}
	}
	return snap, nil
}
