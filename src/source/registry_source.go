package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/harbour-build/harbour/src/core"
)

// shimFile is the on-disk shape of a registry shim entry at
// "<letter>/<pkg>/<version>.toml": it redirects to the package's actual
// backing source, plus optional surface patches the registry applies on top
// of whatever the backing source declares (spec §4.1).
type shimFile struct {
	Git *struct {
		URL    string `toml:"url"`
		Branch string `toml:"branch"`
		Tag    string `toml:"tag"`
		Rev    string `toml:"rev"`
	} `toml:"git"`
	Tarball *struct {
		URL    string `toml:"url"`
		Sha256 string `toml:"sha256"`
	} `toml:"tarball"`
	Patch *shimPatch `toml:"patch"`
}

// shimPatch is a registry-authored surface fixup layered on top of whatever
// the backing source's own manifest declares: the registry's way of
// correcting a package whose upstream build files don't expose what a
// dependent needs, without forking the source itself. It always contributes
// to the public half, since the whole point is for it to be visible to
// dependents; Targets names which of the package's targets it applies to,
// or every target when empty.
type shimPatch struct {
	Targets     []string `toml:"targets"`
	Defines     []string `toml:"defines"`
	IncludeDirs []string `toml:"include_dirs"`
	CFlags      []string `toml:"cflags"`
	LDFlags     []string `toml:"ldflags"`
}

func (p *shimPatch) defines() []core.Define {
	defines := make([]core.Define, 0, len(p.Defines))
	for _, raw := range p.Defines {
		if name, value, ok := strings.Cut(raw, "="); ok {
			defines = append(defines, core.Define{Name: name, Value: value, HasValue: true})
		} else {
			defines = append(defines, core.Define{Name: raw})
		}
	}
	return defines
}

// apply layers p onto pkg's targets as an always-matching ConditionalSurface,
// so the existing conditional-surface propagation machinery (surface §4.3)
// carries it through to dependents without any special-casing.
func (p *shimPatch) apply(pkg core.Package) core.Package {
	if p == nil {
		return pkg
	}
	cond := core.ConditionalSurface{
		Patch: core.SurfacePatch{
			Compile: core.CompileSurface{Public: core.CompileHalf{
				IncludeDirs: p.IncludeDirs,
				Defines:     p.defines(),
				CFlags:      p.CFlags,
			}},
			Link: core.LinkSurface{Public: core.LinkHalf{LDFlags: p.LDFlags}},
		},
	}
	for name, target := range pkg.Manifest.Targets {
		if len(p.Targets) > 0 && !contains(p.Targets, name) {
			continue
		}
		target.Surface.Conditionals = append(target.Surface.Conditionals, cond)
		pkg.Manifest.Targets[name] = target
	}
	return pkg
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (s *shimFile) reference() core.GitReference {
	switch {
	case s.Git.Tag != "":
		return core.GitReference{Kind: core.GitTag, Value: s.Git.Tag}
	case s.Git.Rev != "":
		return core.GitReference{Kind: core.GitRev, Value: s.Git.Rev}
	case s.Git.Branch != "":
		return core.GitReference{Kind: core.GitBranch, Value: s.Git.Branch}
	default:
		return core.GitReference{Kind: core.GitDefaultBranch}
	}
}

// TarballFetcher materializes a tarball shim into a local directory. The
// actual network/extraction mechanics are an external collaborator (spec §1
// Out of scope: "git/tarball fetching machinery beyond the Source
// contract"); RegistrySource only needs the destination path back.
type TarballFetcher func(url, sha256 string, destDir string) error

// RegistrySource reads shim files from Root: "<root>/<letter>/<pkg>/<version>.toml".
// Non-goal: no central registry network protocol is specified (spec §1), so
// Root may equally be a local mirror directory or a synced copy of a remote one.
type RegistrySource struct {
	Root     string
	Name     string // registry name, empty for the default registry
	CacheRoot string
	Loader   ManifestLoader
	Fetcher  TarballFetcher

	// backing and patches are populated lazily per Handle: the Source this
	// shim redirects to, and the surface patch (if any) it declares.
	backing  map[string]Source
	patches  map[string]*shimPatch
}

// NewRegistrySource constructs a RegistrySource reading shim files under root.
func NewRegistrySource(root, name, cacheRoot string, loader ManifestLoader, fetcher TarballFetcher) *RegistrySource {
	return &RegistrySource{
		Root: root, Name: name, CacheRoot: cacheRoot, Loader: loader, Fetcher: fetcher,
		backing: map[string]Source{}, patches: map[string]*shimPatch{},
	}
}

func (s *RegistrySource) isSource() {}

func (s *RegistrySource) shimDir(pkgName string) string {
	letter := "_"
	if pkgName != "" {
		letter = strings.ToLower(pkgName[:1])
	}
	return filepath.Join(s.Root, letter, pkgName)
}

// Query enumerates every "<version>.toml" shim under the package's shim
// directory, highest version first (spec §4.2 deterministic ordering).
func (s *RegistrySource) Query(name string, requirement core.Requirement) ([]Handle, error) {
	dir := s.shimDir(name)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry shim dir %s: %w", dir, err)
	}
	var handles []Handle
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		versionStr := strings.TrimSuffix(e.Name(), ".toml")
		v, err := core.ParseVersion(versionStr)
		if err != nil {
			log.Warning("skipping malformed shim %s/%s: %s", dir, e.Name(), err)
			continue
		}
		if !requirement.Matches(v) {
			continue
		}
		handles = append(handles, Handle{Name: name, Version: v, path: filepath.Join(dir, e.Name())})
	}
	sortHandlesDescending(handles)
	return handles, nil
}

// sortHandlesDescending orders candidates highest-version-first (spec §4.2).
func sortHandlesDescending(hs []Handle) {
	sort.Slice(hs, func(i, j int) bool {
		return hs[j].Version.LessThan(hs[i].Version)
	})
}

func (s *RegistrySource) readShim(h Handle) (*shimFile, error) {
	var sf shimFile
	if _, err := toml.DecodeFile(h.path, &sf); err != nil {
		return nil, fmt.Errorf("parsing shim %s: %w", h.path, err)
	}
	return &sf, nil
}

func (s *RegistrySource) backingSource(h Handle) (Source, error) {
	if b, ok := s.backing[h.path]; ok {
		return b, nil
	}
	sf, err := s.readShim(h)
	if err != nil {
		return nil, err
	}
	var b Source
	switch {
	case sf.Git != nil:
		b = NewGitSource(sf.Git.URL, sf.reference(), s.CacheRoot, s.Loader)
	case sf.Tarball != nil:
		b = newTarballSource(sf.Tarball.URL, sf.Tarball.Sha256, s.CacheRoot, s.Loader, s.Fetcher)
	default:
		return nil, fmt.Errorf("shim %s redirects to neither git nor tarball", h.path)
	}
	s.backing[h.path] = b
	s.patches[h.path] = sf.Patch
	return b, nil
}

func (s *RegistrySource) LoadPackage(h Handle) (core.Package, error) {
	b, err := s.backingSource(h)
	if err != nil {
		return core.Package{}, err
	}
	pkg, err := b.LoadPackage(h)
	if err != nil {
		return core.Package{}, err
	}
	pkg.ID = core.NewPackageId(pkg.ID.Name, pkg.ID.Version, core.NewRegistrySourceId(s.Name))
	pkg = s.patches[h.path].apply(pkg)
	return pkg, nil
}

func (s *RegistrySource) EnsureReady(h Handle) error {
	b, err := s.backingSource(h)
	if err != nil {
		return err
	}
	return b.EnsureReady(h)
}

func (s *RegistrySource) GetPackagePath(h Handle) (string, error) {
	b, err := s.backingSource(h)
	if err != nil {
		return "", err
	}
	return b.GetPackagePath(h)
}

func (s *RegistrySource) IsCached(h Handle) bool {
	b, err := s.backingSource(h)
	if err != nil {
		return false
	}
	return b.IsCached(h)
}
