package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/harbour-build/harbour/src/core"
)

// GitSource resolves a dependency fetched from a git remote at a fixed
// reference. It materializes into a content-addressed directory under the
// cache root keyed by sha256(url || reference) (spec §4.1); a Branch
// reference is pinned to its current commit the first time it is resolved,
// and that commit is what ends up in the lockfile.
type GitSource struct {
	CacheRoot string
	URL       string
	Reference core.GitReference
	Loader    ManifestLoader

	mu             sync.Mutex
	ready          bool
	readyErr       error
	pinnedCommit   string // resolved commit sha, filled in by EnsureReady
}

// NewGitSource constructs a GitSource for one (url, reference) pair.
func NewGitSource(url string, ref core.GitReference, cacheRoot string, loader ManifestLoader) *GitSource {
	return &GitSource{CacheRoot: cacheRoot, URL: url, Reference: ref, Loader: loader}
}

func (s *GitSource) isSource() {}

func (s *GitSource) cacheKey() string {
	sum := sha256.Sum256([]byte(s.URL + "||" + s.Reference.String()))
	return hex.EncodeToString(sum[:])
}

func (s *GitSource) cacheDir() string {
	return filepath.Join(s.CacheRoot, "git", s.cacheKey())
}

// EnsureReady clones or fetches the remote into the content-addressed cache
// directory and checks out the configured reference, pinning a Branch or
// DefaultBranch reference to the commit it currently points at.
func (s *GitSource) EnsureReady(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return s.readyErr
	}
	s.readyErr = s.ensureReadyLocked()
	s.ready = true
	return s.readyErr
}

func (s *GitSource) ensureReadyLocked() error {
	dir := s.cacheDir()
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		log.Debug("cloning %s into %s", s.URL, dir)
		if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
			return fmt.Errorf("creating git cache parent: %w", err)
		}
		tmp := dir + ".tmp"
		os.RemoveAll(tmp)
		if out, err := exec.Command("git", "clone", "--quiet", s.URL, tmp).CombinedOutput(); err != nil {
			return fmt.Errorf("git clone %s: %w: %s", s.URL, err, out)
		}
		if err := os.Rename(tmp, dir); err != nil {
			return fmt.Errorf("finalizing git cache dir: %w", err)
		}
	} else {
		if out, err := s.git(dir, "fetch", "--quiet", "--all"); err != nil {
			return fmt.Errorf("git fetch %s: %w: %s", s.URL, err, out)
		}
	}

	checkoutTarget := s.Reference.Value
	switch s.Reference.Kind {
	case core.GitDefaultBranch:
		out, err := s.git(dir, "rev-parse", "--abbrev-ref", "origin/HEAD")
		if err != nil {
			return fmt.Errorf("determining default branch for %s: %w: %s", s.URL, err, out)
		}
		checkoutTarget = strings.TrimSpace(string(out))
	case core.GitBranch:
		checkoutTarget = "origin/" + s.Reference.Value
	}

	if out, err := s.git(dir, "checkout", "--quiet", "--detach", checkoutTarget); err != nil {
		return fmt.Errorf("git checkout %s in %s: %w: %s", checkoutTarget, s.URL, err, out)
	}
	out, err := s.git(dir, "rev-parse", "HEAD")
	if err != nil {
		return fmt.Errorf("resolving HEAD in %s: %w: %s", s.URL, err, out)
	}
	s.pinnedCommit = strings.TrimSpace(string(out))
	return nil
}

func (s *GitSource) git(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// ResolvedReference returns the reference that should be written to the
// lockfile: the original Tag/Rev as-is, or the pinned commit for a Branch or
// DefaultBranch reference. EnsureReady must have been called first.
func (s *GitSource) ResolvedReference() core.GitReference {
	if s.Reference.Kind == core.GitTag || s.Reference.Kind == core.GitRev {
		return s.Reference
	}
	return core.GitReference{Kind: core.GitRev, Value: s.pinnedCommit}
}

func (s *GitSource) Query(name string, requirement core.Requirement) ([]Handle, error) {
	if err := s.EnsureReady(Handle{}); err != nil {
		return nil, err
	}
	m, err := s.Loader(s.cacheDir())
	if err != nil {
		return nil, fmt.Errorf("loading manifest from %s: %w", s.URL, err)
	}
	return []Handle{{Name: m.Package.Name, Version: m.Package.Version, path: s.cacheDir()}}, nil
}

func (s *GitSource) LoadPackage(h Handle) (core.Package, error) {
	if err := s.EnsureReady(h); err != nil {
		return core.Package{}, err
	}
	m, err := s.Loader(s.cacheDir())
	if err != nil {
		return core.Package{}, err
	}
	id := core.NewPackageId(m.Package.Name, m.Package.Version, core.NewGitSourceId(s.URL, s.ResolvedReference()))
	return core.Package{ID: id, Manifest: m, Root: s.cacheDir()}, nil
}

func (s *GitSource) GetPackagePath(h Handle) (string, error) {
	if err := s.EnsureReady(h); err != nil {
		return "", err
	}
	return s.cacheDir(), nil
}

func (s *GitSource) IsCached(h Handle) bool {
	_, err := os.Stat(filepath.Join(s.cacheDir(), ".git"))
	return err == nil
}
