package jsonfile

import (
	"context"
	"time"

	"github.com/classmark/classmark/internal/storage"
)

// storedTeacher mirrors the on-disk layout of teachers.json.
type storedTeacher struct {
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetTeacher returns the teacher account, or nil when unknown.
func (s *Store) GetTeacher(ctx context.Context, username string) (*storage.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	teachers := make(map[string]storedTeacher)
	if err := s.loadJSON(teachersFile, &teachers); err != nil {
		return nil, err
	}
	st, ok := teachers[username]
	if !ok {
		return nil, nil
	}
	return &storage.Teacher{
		Username:     st.Username,
		Name:         st.Name,
		PasswordHash: st.PasswordHash,
		CreatedAt:    st.CreatedAt,
	}, nil
}

// SaveTeacher creates or replaces a teacher account.
func (s *Store) SaveTeacher(ctx context.Context, t storage.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	teachers := make(map[string]storedTeacher)
	if err := s.loadJSON(teachersFile, &teachers); err != nil {
		return err
	}
	teachers[t.Username] = storedTeacher{
		Username:     t.Username,
		Name:         t.Name,
		PasswordHash: t.PasswordHash,
		CreatedAt:    t.CreatedAt,
	}
	return s.saveJSON(teachersFile, teachers)
}
