package core

import "fmt"

// SourceKind distinguishes the three source variants a dependency can
// resolve against (spec §4.1).
type SourceKind int

const (
	// SourcePath identifies a dependency living at a local filesystem path.
	SourcePath SourceKind = iota
	// SourceGit identifies a dependency fetched from a git remote.
	SourceGit
	// SourceRegistry identifies a dependency fetched from a package registry.
	SourceRegistry
)

func (k SourceKind) String() string {
	switch k {
	case SourcePath:
		return "path"
	case SourceGit:
		return "git"
	case SourceRegistry:
		return "registry"
	default:
		return "unknown"
	}
}

// GitRefKind distinguishes the forms a git reference can take.
type GitRefKind int

const (
	// GitBranch pins to the tip of a named branch; re-resolving may move.
	GitBranch GitRefKind = iota
	// GitTag pins to a named tag.
	GitTag
	// GitRev pins to an exact commit hash.
	GitRev
	// GitDefaultBranch pins to whatever the remote reports as its default branch.
	GitDefaultBranch
)

// GitReference identifies a specific point in a git remote's history.
type GitReference struct {
	Kind  GitRefKind
	Value string // branch/tag name or commit hash; empty for GitDefaultBranch
}

func (r GitReference) String() string {
	switch r.Kind {
	case GitBranch:
		return "branch:" + r.Value
	case GitTag:
		return "tag:" + r.Value
	case GitRev:
		return "rev:" + r.Value
	case GitDefaultBranch:
		return "HEAD"
	default:
		return "unknown"
	}
}

// SourceId is a closed, comparable identity for a dependency source. It is
// interned on construction (spec §9 Design Notes) so that resolver inner
// loops compare a single uint32 handle rather than the underlying strings;
// the fields below remain available for the src/source package to act on.
type SourceId struct {
	Kind      SourceKind
	Path      string       // set when Kind == SourcePath
	URL       string       // set when Kind == SourceGit
	Reference GitReference // set when Kind == SourceGit
	Registry  string       // set when Kind == SourceRegistry

	handle uint32
	key    string
}

// NewPathSourceId identifies a dependency at a local filesystem path.
func NewPathSourceId(path string) SourceId {
	key := fmt.Sprintf("path:%s", path)
	return SourceId{Kind: SourcePath, Path: path, key: key, handle: globalInterner.Intern(key)}
}

// NewGitSourceId identifies a dependency fetched from a git remote at a
// specific reference. Two SourceIds with the same url+reference intern to
// the same handle regardless of construction order.
func NewGitSourceId(url string, ref GitReference) SourceId {
	key := fmt.Sprintf("git:%s@%s", url, ref)
	return SourceId{Kind: SourceGit, URL: url, Reference: ref, key: key, handle: globalInterner.Intern(key)}
}

// NewRegistrySourceId identifies a dependency resolved through a named
// package registry (the default registry when registry == "").
func NewRegistrySourceId(registry string) SourceId {
	key := fmt.Sprintf("registry:%s", registry)
	return SourceId{Kind: SourceRegistry, Registry: registry, key: key, handle: globalInterner.Intern(key)}
}

// String renders the canonical, interned-unique description of this source.
func (s SourceId) String() string {
	if s.key == "" {
		return "source:<zero>"
	}
	return s.key
}

// Equal reports whether two SourceIds refer to the same underlying source.
func (s SourceId) Equal(other SourceId) bool {
	return s.handle == other.handle && s.key == other.key
}

// Handle returns the interned integer identity, suitable as a map key in
// hot paths where string comparison would be too slow.
func (s SourceId) Handle() uint32 { return s.handle }
