package jsonfile

import (
	"context"
	"time"

	"github.com/classmark/classmark/internal/session"
)

// storedSession mirrors the on-disk layout of sessions.json.
type storedSession struct {
	SessionID    string    `json:"session_id"`
	Subject      string    `json:"subject"`
	Teacher      string    `json:"teacher_username"`
	Mode         string    `json:"mode"`
	SubnetPrefix string    `json:"subnet,omitempty"`
	Token        string    `json:"token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func toStored(s *session.Session) storedSession {
	return storedSession{
		SessionID:    s.ID,
		Subject:      s.Subject,
		Teacher:      s.Owner,
		Mode:         string(s.Predicate.Mode),
		SubnetPrefix: s.Predicate.SubnetPrefix,
		Token:        s.Predicate.Token,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

func fromStored(ss storedSession) session.Session {
	return session.Session{
		ID:      ss.SessionID,
		Subject: ss.Subject,
		Owner:   ss.Teacher,
		Predicate: session.Predicate{
			Mode:         session.Mode(ss.Mode),
			SubnetPrefix: ss.SubnetPrefix,
			Token:        ss.Token,
		},
		CreatedAt: ss.CreatedAt,
		ExpiresAt: ss.ExpiresAt,
	}
}

// Create stores a new session.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]storedSession)
	if err := s.loadJSON(sessionsFile, &sessions); err != nil {
		return err
	}
	sessions[sess.ID] = toStored(sess)
	return s.saveJSON(sessionsFile, sessions)
}

// Get retrieves a session by id, expired or not.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]storedSession)
	if err := s.loadJSON(sessionsFile, &sessions); err != nil {
		return nil, err
	}
	ss, ok := sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	out := fromStored(ss)
	return &out, nil
}

// Delete removes a session. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]storedSession)
	if err := s.loadJSON(sessionsFile, &sessions); err != nil {
		return err
	}
	if _, ok := sessions[id]; !ok {
		return nil
	}
	delete(sessions, id)
	return s.saveJSON(sessionsFile, sessions)
}

// DeleteExpired removes all sessions past their expiry and returns the count
// deleted.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]storedSession)
	if err := s.loadJSON(sessionsFile, &sessions); err != nil {
		return 0, err
	}
	now := time.Now()
	var deleted int64
	for id, ss := range sessions {
		if !ss.ExpiresAt.After(now) {
			delete(sessions, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, s.saveJSON(sessionsFile, sessions)
}

// List returns all stored sessions.
func (s *Store) List(ctx context.Context) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make(map[string]storedSession)
	if err := s.loadJSON(sessionsFile, &sessions); err != nil {
		return nil, err
	}
	out := make([]session.Session, 0, len(sessions))
	for _, ss := range sessions {
		out = append(out, fromStored(ss))
	}
	return out, nil
}
