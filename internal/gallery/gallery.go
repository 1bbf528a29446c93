// Package gallery holds the known-student face encodings the matcher searches.
// The gallery is built once at startup from the encoding store and is
// immutable afterwards, so it may be shared across requests without locking.
// Re-encoding students is an offline operation (`classmark encode`) followed
// by a restart.
package gallery

import (
	"context"
	"fmt"
	"sort"

	"github.com/classmark/classmark/internal/storage"
)

// Entry is one reference encoding. Students with several reference images
// contribute several entries under the same StudentID.
type Entry struct {
	StudentID string
	Name      string
	Vector    []float32
}

// Gallery is an immutable set of reference encodings, optionally backed by an
// HNSW candidate index for large galleries.
type Gallery struct {
	entries []Entry
	names   map[string]string
	dim     int
	index   *hnswIndex
}

// Load reads all encodings from the store and validates them. A dimension
// mismatch means the encoding store was built with a different model and is
// fatal: serving recognition against a corrupt gallery would silently mark
// the wrong students.
func Load(ctx context.Context, repo storage.EncodingRepository, dim int) (*Gallery, error) {
	encs, err := repo.LoadEncodings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading encodings: %w", err)
	}

	g := &Gallery{
		entries: make([]Entry, 0, len(encs)),
		names:   make(map[string]string),
		dim:     dim,
	}

	for _, enc := range encs {
		if enc.StudentID == "" || len(enc.Vector) == 0 {
			continue
		}
		if dim > 0 && len(enc.Vector) != dim {
			return nil, fmt.Errorf("encoding for %q has dimension %d, expected %d",
				enc.StudentID, len(enc.Vector), dim)
		}
		g.entries = append(g.entries, Entry{
			StudentID: enc.StudentID,
			Name:      enc.Name,
			Vector:    enc.Vector,
		})
		if enc.Name != "" {
			g.names[enc.StudentID] = enc.Name
		}
	}

	// Deterministic order so equidistant matches resolve the same way on
	// every run: lowest student id first.
	sort.SliceStable(g.entries, func(i, j int) bool {
		return g.entries[i].StudentID < g.entries[j].StudentID
	})

	return g, nil
}

// Size returns the number of encodings.
func (g *Gallery) Size() int {
	return len(g.entries)
}

// Students returns the number of distinct students.
func (g *Gallery) Students() int {
	seen := make(map[string]struct{}, len(g.entries))
	for _, e := range g.entries {
		seen[e.StudentID] = struct{}{}
	}
	return len(seen)
}

// Dim returns the expected vector dimensionality (0 when unenforced).
func (g *Gallery) Dim() int {
	return g.dim
}

// Name returns the student's display name, falling back to the id.
func (g *Gallery) Name(studentID string) string {
	if name, ok := g.names[studentID]; ok {
		return name
	}
	return studentID
}

// Entries returns all encodings in deterministic order. Callers must not
// mutate the returned slice.
func (g *Gallery) Entries() []Entry {
	return g.entries
}

// Candidates returns the entries worth comparing against the probe. With an
// index built it returns the k approximate nearest entries; otherwise the
// whole gallery. The matcher re-ranks candidates with exact distances either
// way.
func (g *Gallery) Candidates(probe []float32, k int) []Entry {
	if g.index == nil {
		return g.entries
	}
	return g.index.search(probe, k)
}
