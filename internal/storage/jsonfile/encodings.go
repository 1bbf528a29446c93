package jsonfile

import (
	"context"
	"time"

	"github.com/classmark/classmark/internal/storage"
)

// storedEncoding mirrors the on-disk layout of encodings.json.
type storedEncoding struct {
	StudentID string    `json:"student_id"`
	Name      string    `json:"name,omitempty"`
	Vector    []float32 `json:"encoding"`
	Dim       int       `json:"dim"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveEncoding appends one reference encoding.
func (s *Store) SaveEncoding(ctx context.Context, enc storage.Encoding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var encs []storedEncoding
	if err := s.loadJSON(encodingsFile, &encs); err != nil {
		return err
	}
	encs = append(encs, storedEncoding{
		StudentID: enc.StudentID,
		Name:      enc.Name,
		Vector:    enc.Vector,
		Dim:       len(enc.Vector),
		CreatedAt: enc.CreatedAt,
	})
	return s.saveJSON(encodingsFile, encs)
}

// LoadEncodings returns all reference encodings.
func (s *Store) LoadEncodings(ctx context.Context) ([]storage.Encoding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var encs []storedEncoding
	if err := s.loadJSON(encodingsFile, &encs); err != nil {
		return nil, err
	}
	out := make([]storage.Encoding, 0, len(encs))
	for _, se := range encs {
		out = append(out, storage.Encoding{
			StudentID: se.StudentID,
			Name:      se.Name,
			Vector:    se.Vector,
			Dim:       se.Dim,
			CreatedAt: se.CreatedAt,
		})
	}
	return out, nil
}

// DeleteEncodings removes every encoding stored for the student. Unknown
// students are a no-op.
func (s *Store) DeleteEncodings(ctx context.Context, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var encs []storedEncoding
	if err := s.loadJSON(encodingsFile, &encs); err != nil {
		return err
	}
	kept := encs[:0]
	for _, se := range encs {
		if se.StudentID != studentID {
			kept = append(kept, se)
		}
	}
	if len(kept) == len(encs) {
		return nil
	}
	return s.saveJSON(encodingsFile, kept)
}

// CountEncodings returns the number of stored encodings.
func (s *Store) CountEncodings(ctx context.Context) (int, error) {
	encs, err := s.LoadEncodings(ctx)
	if err != nil {
		return 0, err
	}
	return len(encs), nil
}
