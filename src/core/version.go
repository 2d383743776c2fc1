package core

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version wraps a semantic version. It stores only the canonical string so
// that Version, and therefore PackageId, stays a plain comparable value
// usable as a map key in the resolve graph; *semver.Version is re-parsed on
// demand for ordering comparisons. Packages from a Path source are exempt
// from range matching against their own declared version (spec §4.2) but
// still carry one so they can serve as resolve-graph node identity.
type Version struct {
	s string
}

// ParseVersion parses a semver string into a Version.
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return Version{s: v.String()}, nil
}

// MustParseVersion is ParseVersion but panics on error; for use with constants in tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical version string.
func (v Version) String() string {
	return v.s
}

func (v Version) semver() *semver.Version {
	if v.s == "" {
		return semver.MustParse("0.0.0")
	}
	sv, err := semver.NewVersion(v.s)
	if err != nil {
		// Unreachable in practice: v.s is always produced by ParseVersion,
		// which already validated it.
		return semver.MustParse("0.0.0")
	}
	return sv
}

// LessThan reports whether v sorts before other. Used to order candidates highest-first.
func (v Version) LessThan(other Version) bool {
	return v.semver().LessThan(other.semver())
}

// Equal reports structural equality of two versions.
func (v Version) Equal(other Version) bool {
	return v.s == other.s
}

// Requirement is a version-range predicate (semver-range semantics, spec §3).
type Requirement struct {
	raw string
	c   *semver.Constraints
}

// ParseRequirement parses a requirement string such as "^1.2", "~1", ">=1.0, <2.0".
func ParseRequirement(s string) (Requirement, error) {
	if s == "" {
		s = "*"
	}
	c, err := semver.NewConstraint(s)
	if err != nil {
		return Requirement{}, fmt.Errorf("invalid requirement %q: %w", s, err)
	}
	return Requirement{raw: s, c: c}, nil
}

// MustParseRequirement is ParseRequirement but panics on error.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Matches reports whether v satisfies the requirement.
func (r Requirement) Matches(v Version) bool {
	if r.c == nil {
		return true
	}
	return r.c.Check(v.semver())
}

// String returns the original requirement text.
func (r Requirement) String() string { return r.raw }

// Intersect combines two requirements into one that matches only versions
// satisfying both. Requirement strings are combined with a comma, which
// Masterminds/semver treats as a logical AND of constraints.
func (r Requirement) Intersect(other Requirement) (Requirement, error) {
	combined := r.raw
	if combined == "" || combined == "*" {
		combined = other.raw
	} else if other.raw != "" && other.raw != "*" {
		combined = combined + ", " + other.raw
	}
	return ParseRequirement(combined)
}
