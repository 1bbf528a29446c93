package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	sessionCookieName = "classmark_session"
	sessionDuration   = 12 * time.Hour
)

// TeacherSession is a logged-in teacher's browser session. Not to be
// confused with attendance sessions; this is the cookie that lets a teacher
// open and stop those.
type TeacherSession struct {
	ID        string
	Username  string
	Name      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager handles teacher session creation and validation.
type SessionManager struct {
	secret   []byte
	sessions map[string]*TeacherSession
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager(secret string) *SessionManager {
	// Use a default secret if none provided (for development)
	if secret == "" {
		secret = "classmark-dev-secret-change-in-production"
	}
	return &SessionManager{
		secret:   []byte(secret),
		sessions: make(map[string]*TeacherSession),
	}
}

// CreateSession creates a new session for a logged-in teacher.
func (sm *SessionManager) CreateSession(username, name string) (*TeacherSession, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, err
	}
	sessionID := base64.URLEncoding.EncodeToString(idBytes)

	s := &TeacherSession{
		ID:        sessionID,
		Username:  username,
		Name:      name,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(sessionDuration),
	}

	sm.mu.Lock()
	sm.sessions[sessionID] = s
	sm.mu.Unlock()

	return s, nil
}

// GetSession retrieves a session by ID. Expired sessions are dropped lazily.
func (sm *SessionManager) GetSession(sessionID string) *TeacherSession {
	sm.mu.RLock()
	s, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return nil
	}

	if time.Now().After(s.ExpiresAt) {
		sm.DeleteSession(sessionID)
		return nil
	}
	return s
}

// DeleteSession removes a session.
func (sm *SessionManager) DeleteSession(sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()
}

// SetSessionCookie sets the signed session cookie on the response.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, s *TeacherSession) {
	signature := sm.signData(s.ID)
	cookieValue := s.ID + "." + signature

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionDuration.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest extracts the teacher session from a request.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *TeacherSession {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	parts := strings.SplitN(cookie.Value, ".", 2)
	if len(parts) != 2 {
		return nil
	}
	if !sm.verifySignature(parts[0], parts[1]) {
		return nil
	}
	return sm.GetSession(parts[0])
}

// signData creates an HMAC signature for data.
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature.
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}
