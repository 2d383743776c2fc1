package resolve

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/harbour-build/harbour/src/core"
)

// lockEntry is the on-disk shape of one Harbour.lock package entry (spec §6).
// Field order here is the order BurntSushi/toml emits them in, which is what
// gives the lockfile its stable, human-inspectable field ordering.
type lockEntry struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	SourceKind   string   `toml:"source_kind"`
	SourceID     string   `toml:"source_id"`
	Checksum     string   `toml:"checksum,omitempty"`
	Dependencies []string `toml:"dependencies"` // "name@version" entries, sorted
}

// lockFile is the full on-disk Harbour.lock document.
type lockFile struct {
	ManifestHash string      `toml:"manifest_hash"`
	Package      []lockEntry `toml:"package"`
}

// Lockfile is the in-memory, typed view of a Harbour.lock used for freshness
// checking and preferred-version biasing.
type Lockfile struct {
	ManifestHash string
	Entries      map[string]LockEntry // keyed by package name
}

// LockEntry is one resolved package as recorded in the lockfile.
type LockEntry struct {
	Name         string
	Version      core.Version
	Source       core.SourceId
	Checksum     string
	Dependencies []string
}

// ManifestContentHash computes the SHA-256 over the canonicalized manifest
// (spec §3 Lockfile: "manifest content hash"). Canonicalization here means
// the deterministic TOML encoding BurntSushi/toml produces for the package
// name, the package version and each dependency's requirement string, sorted
// by dependency name. Targets, dependency source specs and the other manifest
// sections are not part of the hash.
func ManifestContentHash(m core.Manifest) (string, error) {
	canon := struct {
		Name    string
		Version string
		Deps    map[string]string
	}{
		Name:    m.Package.Name,
		Version: m.Package.Version.String(),
		Deps:    map[string]string{},
	}
	for name, dep := range m.Dependencies {
		canon.Deps[name] = dep.Requirement.String()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(canon); err != nil {
		return "", fmt.Errorf("canonicalizing manifest: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// FromResolve builds a Lockfile from a completed Resolve, for writing to disk.
func FromResolve(r *Resolve, manifestHash string) *Lockfile {
	lf := &Lockfile{ManifestHash: manifestHash, Entries: map[string]LockEntry{}}
	for _, id := range r.Order() {
		pkg, _ := r.Package(id)
		deps := r.Deps(id)
		depNames := make([]string, 0, len(deps))
		for _, d := range deps {
			depNames = append(depNames, d.String())
		}
		sort.Strings(depNames)
		lf.Entries[id.Name] = LockEntry{
			Name:         id.Name,
			Version:      id.Version,
			Source:       id.Source,
			Dependencies: depNames,
		}
		_ = pkg
	}
	return lf
}

// WriteFile serializes lf to path in canonical, sorted, LF-only form (spec
// §6: "sorted by PackageId; fields stable-ordered; trailing newline;
// LF-only line endings").
func (lf *Lockfile) WriteFile(path string) error {
	names := make([]string, 0, len(lf.Entries))
	for name := range lf.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	doc := lockFile{ManifestHash: lf.ManifestHash}
	for _, name := range names {
		e := lf.Entries[name]
		doc.Package = append(doc.Package, lockEntry{
			Name:         e.Name,
			Version:      e.Version.String(),
			SourceKind:   e.Source.Kind.String(),
			SourceID:     e.Source.String(),
			Checksum:     e.Checksum,
			Dependencies: e.Dependencies,
		})
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}
	out := bytes.ReplaceAll(buf.Bytes(), []byte("\r\n"), []byte("\n"))
	if len(out) == 0 || out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	return os.WriteFile(path, out, 0o644)
}

// ReadLockfile parses a Harbour.lock from path.
func ReadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc lockFile
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, &core.LockfileCorruptError{Cause: err}
	}
	lf := &Lockfile{ManifestHash: doc.ManifestHash, Entries: map[string]LockEntry{}}
	for _, e := range doc.Package {
		v, err := core.ParseVersion(e.Version)
		if err != nil {
			return nil, &core.LockfileCorruptError{Cause: err}
		}
		lf.Entries[e.Name] = LockEntry{
			Name:         e.Name,
			Version:      v,
			Checksum:     e.Checksum,
			Dependencies: e.Dependencies,
		}
	}
	return lf, nil
}

// IsFresh reports whether lf can be reused as-is against the current
// manifest content hash, without re-invoking the resolver (spec §4.2
// Lockfile freshness). It compares the manifest hash only; it does not check
// source validity (paths exist, git commits still resolvable).
func (lf *Lockfile) IsFresh(currentManifestHash string) bool {
	return lf.ManifestHash == currentManifestHash
}

// PreferredVersions extracts the name->version bias handed to Solve when
// re-resolving with a pre-existing lockfile present.
func (lf *Lockfile) PreferredVersions() map[string]core.Version {
	out := make(map[string]core.Version, len(lf.Entries))
	for name, e := range lf.Entries {
		out[name] = e.Version
	}
	return out
}
