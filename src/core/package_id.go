package core

import "fmt"

// PackageId is the identity of a single resolved package: a name together
// with the exact version and source it was resolved to. Two PackageIds are
// equal iff all three fields match; this is the node identity used by the
// Resolve graph (spec §4.2).
type PackageId struct {
	Name    string
	Version Version
	Source  SourceId
}

// NewPackageId constructs a PackageId.
func NewPackageId(name string, version Version, source SourceId) PackageId {
	return PackageId{Name: name, Version: version, Source: source}
}

// String renders "name@version" for diagnostics; the source is omitted
// since most cycles/conflicts are readable from name+version alone.
func (p PackageId) String() string {
	return fmt.Sprintf("%s@%s", p.Name, p.Version)
}

// Less defines the deterministic ordering used when the solver and the
// topological sort need to break ties: lexicographic by name, then by
// source identity, then highest version first.
func (p PackageId) Less(other PackageId) bool {
	if p.Name != other.Name {
		return p.Name < other.Name
	}
	if p.Source.String() != other.Source.String() {
		return p.Source.String() < other.Source.String()
	}
	return other.Version.LessThan(p.Version)
}
