package jsonfile

import (
	"context"
	"time"

	"github.com/classmark/classmark/internal/ledger"
)

// storedMark mirrors the on-disk layout of marks.json. The map key is
// "student|subject|day", which is what makes Insert a conditional write.
type storedMark struct {
	StudentID string    `json:"student_id"`
	Subject   string    `json:"subject"`
	Day       string    `json:"date"`
	MarkedAt  time.Time `json:"time"`
}

func markKey(m ledger.Mark) string {
	return m.StudentID + "|" + m.Subject + "|" + m.Day
}

// Insert appends a mark unless one already exists for the same (student,
// subject, day). The store mutex makes the check-and-set atomic within the
// process.
func (s *Store) Insert(ctx context.Context, m ledger.Mark) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks := make(map[string]storedMark)
	if err := s.loadJSON(marksFile, &marks); err != nil {
		return false, err
	}

	key := markKey(m)
	if _, ok := marks[key]; ok {
		return false, nil
	}
	marks[key] = storedMark{
		StudentID: m.StudentID,
		Subject:   m.Subject,
		Day:       m.Day,
		MarkedAt:  m.MarkedAt,
	}
	if err := s.saveJSON(marksFile, marks); err != nil {
		return false, err
	}
	return true, nil
}

// List returns all marks.
func (s *Store) List(ctx context.Context) ([]ledger.Mark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks := make(map[string]storedMark)
	if err := s.loadJSON(marksFile, &marks); err != nil {
		return nil, err
	}
	out := make([]ledger.Mark, 0, len(marks))
	for _, sm := range marks {
		out = append(out, ledger.Mark{
			StudentID: sm.StudentID,
			Subject:   sm.Subject,
			Day:       sm.Day,
			MarkedAt:  sm.MarkedAt,
		})
	}
	return out, nil
}
