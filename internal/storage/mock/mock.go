// Package mock provides in-memory implementations of the storage interfaces
// for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/classmark/classmark/internal/ledger"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/storage"
)

// SessionRepository is an in-memory implementation of session.Repository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]session.Session

	// Error injection
	CreateError error
	GetError    error
	DeleteError error
	ListError   error

	// Clock for DeleteExpired; defaults to time.Now.
	Now func() time.Time
}

// NewSessionRepository creates a new mock session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]session.Session)}
}

func (m *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *SessionRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *SessionRepository) List(ctx context.Context) ([]session.Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// MarkRepository is an in-memory implementation of ledger.Repository. Insert
// is atomic under the mutex, mirroring the conditional-insert semantics of
// the real backends.
type MarkRepository struct {
	mu    sync.Mutex
	marks map[string]ledger.Mark

	// Error injection
	InsertError error
	ListError   error
}

// NewMarkRepository creates a new mock mark repository.
func NewMarkRepository() *MarkRepository {
	return &MarkRepository{marks: make(map[string]ledger.Mark)}
}

func (m *MarkRepository) Insert(ctx context.Context, mark ledger.Mark) (bool, error) {
	if m.InsertError != nil {
		return false, m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mark.StudentID + "|" + mark.Subject + "|" + mark.Day
	if _, ok := m.marks[key]; ok {
		return false, nil
	}
	m.marks[key] = mark
	return true, nil
}

func (m *MarkRepository) List(ctx context.Context) ([]ledger.Mark, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Mark, 0, len(m.marks))
	for _, mark := range m.marks {
		out = append(out, mark)
	}
	return out, nil
}

// Count returns the number of stored marks.
func (m *MarkRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.marks)
}

// EncodingRepository is an in-memory implementation of
// storage.EncodingRepository.
type EncodingRepository struct {
	mu        sync.RWMutex
	encodings []storage.Encoding

	// Error injection
	SaveError   error
	LoadError   error
	DeleteError error
}

// NewEncodingRepository creates a new mock encoding repository.
func NewEncodingRepository() *EncodingRepository {
	return &EncodingRepository{}
}

// AddEncoding seeds the repository without error injection applying.
func (m *EncodingRepository) AddEncoding(enc storage.Encoding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encodings = append(m.encodings, enc)
}

func (m *EncodingRepository) SaveEncoding(ctx context.Context, enc storage.Encoding) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.AddEncoding(enc)
	return nil
}

func (m *EncodingRepository) LoadEncodings(ctx context.Context) ([]storage.Encoding, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]storage.Encoding, len(m.encodings))
	copy(out, m.encodings)
	return out, nil
}

func (m *EncodingRepository) DeleteEncodings(ctx context.Context, studentID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.encodings[:0]
	for _, enc := range m.encodings {
		if enc.StudentID != studentID {
			kept = append(kept, enc)
		}
	}
	m.encodings = kept
	return nil
}

func (m *EncodingRepository) CountEncodings(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.encodings), nil
}

// TeacherRepository is an in-memory implementation of
// storage.TeacherRepository.
type TeacherRepository struct {
	mu       sync.RWMutex
	teachers map[string]storage.Teacher

	// Error injection
	GetError  error
	SaveError error
}

// NewTeacherRepository creates a new mock teacher repository.
func NewTeacherRepository() *TeacherRepository {
	return &TeacherRepository{teachers: make(map[string]storage.Teacher)}
}

func (m *TeacherRepository) GetTeacher(ctx context.Context, username string) (*storage.Teacher, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teachers[username]
	if !ok {
		return nil, nil
	}
	out := t
	return &out, nil
}

func (m *TeacherRepository) SaveTeacher(ctx context.Context, t storage.Teacher) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teachers[t.Username] = t
	return nil
}
