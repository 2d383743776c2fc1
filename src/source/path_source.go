package source

import (
	"fmt"
	"sync"

	"github.com/harbour-build/harbour/src/core"
)

// ManifestLoader parses the on-disk manifest format into a core.Manifest.
// Deserialization itself is out of scope for this module (spec §1); callers
// inject whichever loader implementation they have, and every Source
// variant here is written against this narrow contract instead of doing any
// parsing of its own.
type ManifestLoader func(packageRoot string) (core.Manifest, error)

// PathSource resolves a dependency living at a fixed local filesystem path.
// It always yields exactly the version declared in that path's own
// manifest, regardless of the requirement asked for (spec §4.1); the
// requirement is still checked by the resolver against that single version.
type PathSource struct {
	AbsPath string
	Loader  ManifestLoader

	mu       sync.Mutex
	loaded   bool
	manifest core.Manifest
	loadErr  error
}

// NewPathSource constructs a PathSource rooted at absPath.
func NewPathSource(absPath string, loader ManifestLoader) *PathSource {
	return &PathSource{AbsPath: absPath, Loader: loader}
}

func (s *PathSource) isSource() {}

func (s *PathSource) ensureManifest() (core.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.manifest, s.loadErr = s.Loader(s.AbsPath)
		s.loaded = true
	}
	return s.manifest, s.loadErr
}

// Query ignores requirement's ability to exclude the path's own version;
// it returns that single version unconditionally so the resolver can decide
// whether the requirement is satisfiable.
func (s *PathSource) Query(name string, requirement core.Requirement) ([]Handle, error) {
	m, err := s.ensureManifest()
	if err != nil {
		return nil, fmt.Errorf("loading manifest at %s: %w", s.AbsPath, err)
	}
	return []Handle{{Name: m.Package.Name, Version: m.Package.Version, path: s.AbsPath}}, nil
}

func (s *PathSource) LoadPackage(h Handle) (core.Package, error) {
	m, err := s.ensureManifest()
	if err != nil {
		return core.Package{}, err
	}
	id := core.NewPackageId(m.Package.Name, m.Package.Version, core.NewPathSourceId(s.AbsPath))
	return core.Package{ID: id, Manifest: m, Root: s.AbsPath}, nil
}

// EnsureReady is a no-op: path sources are already materialized by definition.
func (s *PathSource) EnsureReady(h Handle) error { return nil }

func (s *PathSource) GetPackagePath(h Handle) (string, error) { return s.AbsPath, nil }

// IsCached is always true: there is nothing to fetch for a path source.
func (s *PathSource) IsCached(h Handle) bool { return true }
