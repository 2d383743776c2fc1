package fingerprint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("fingerprint")

// Store is the canonical, persisted map from step-identifier to fingerprint,
// kept under the target directory (spec §4.7, §5: "writes are deferred
// until a step succeeds; on cancellation, no partial fingerprints are
// written"). encoding/json is used rather than a third-party codec: the
// format never leaves this process (it isn't one of the spec's external
// interfaces, unlike the manifest or lockfile), and json.Marshal already
// emits map keys in sorted order, which is all the determinism this needs.
type Store struct {
	path string
	mu   sync.Mutex
	data map[string]Digest
}

// Load reads the fingerprint store at path, treating a missing file as an
// empty store (first build).
func Load(path string) (*Store, error) {
	s := &Store{path: path, data: map[string]Digest{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.data); err != nil {
		log.Warning("fingerprint store %s is corrupt, treating as empty: %s", path, err)
		s.data = map[string]Digest{}
	}
	return s, nil
}

// Get returns the persisted fingerprint for a step identifier, if any.
func (s *Store) Get(stepID string) (Digest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[stepID]
	return d, ok
}

// Set records a step's fingerprint in memory; call Save to persist.
func (s *Store) Set(stepID string, d Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[stepID] = d
}

// Save writes the store atomically: encode to a temp file in the same
// directory, then rename over the canonical path, so a crash or
// cancellation never leaves a partially written store (spec §5).
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".fingerprint-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
