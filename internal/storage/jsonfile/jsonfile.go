// Package jsonfile is the file-backed storage backend: one JSON document per
// record store under a data directory. It serves single-process deployments
// (a teacher's laptop on a classroom hotspot); writes are serialized by an
// in-process mutex and land via atomic temp-file rename. Multi-process
// deployments need the PostgreSQL backend.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/classmark/classmark/internal/storage"
)

const (
	sessionsFile  = "sessions.json"
	marksFile     = "marks.json"
	encodingsFile = "encodings.json"
	teachersFile  = "teachers.json"
)

// Store implements the session, ledger, encoding and teacher repositories
// over JSON files in a single directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates the data directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// loadJSON reads a JSON file into v. A missing file leaves v at its zero
// value; any other failure is a storage availability error.
func (s *Store) loadJSON(name string, v any) error {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", storage.ErrUnavailable, name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", storage.ErrUnavailable, name, err)
	}
	return nil
}

// saveJSON writes v to a temp file and renames it into place, so readers
// never observe a half-written document.
func (s *Store) saveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	tmp := s.path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", storage.ErrUnavailable, name, err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		return fmt.Errorf("%w: replacing %s: %v", storage.ErrUnavailable, name, err)
	}
	return nil
}
