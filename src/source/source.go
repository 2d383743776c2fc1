// Package source implements the Source contract (spec §4.1): the three
// variants a dependency's origin can take, and the cache that instantiates
// and memoizes them.
package source

import (
	"github.com/harbour-build/harbour/src/core"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("source")

// Handle identifies a specific (name, version) candidate a Source produced
// from a query, opaque outside this package.
type Handle struct {
	Name    string
	Version core.Version
	// path is the source-specific materialization key; PathSource uses the
	// package root directly, GitSource and the tarball source their cache
	// directory, RegistrySource the path of the version's shim file.
	path string
}

// Source is the closed contract every dependency origin satisfies. It is a
// tagged enum dispatched on variant rather than an open interface hierarchy
// (spec §9 Design Notes), but Go has no closed-interface primitive, so we
// express "closed" by constructing implementations only from this package
// and asserting the variant with a private marker method.
type Source interface {
	// Query returns every version matching requirement that this source can
	// provide, highest version first. An empty, non-error result means the
	// source is reachable but has nothing matching.
	Query(name string, requirement core.Requirement) ([]Handle, error)
	// LoadPackage materializes the manifest and backing files locally and
	// returns the loaded Package. Idempotent.
	LoadPackage(h Handle) (core.Package, error)
	// EnsureReady forces local materialization without parsing the
	// manifest, for use during prefetch.
	EnsureReady(h Handle) error
	// GetPackagePath returns the root directory of a materialized package.
	GetPackagePath(h Handle) (string, error)
	// IsCached reports whether h is already materialized locally.
	IsCached(h Handle) bool

	isSource()
}
