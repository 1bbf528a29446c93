package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/classmark/classmark/internal/storage"
	"github.com/classmark/classmark/internal/web/middleware"
)

// AuthHandler handles teacher authentication endpoints.
type AuthHandler struct {
	teachers       storage.TeacherRepository
	sessionManager *middleware.SessionManager
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(teachers storage.TeacherRepository, sm *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{
		teachers:       teachers,
		sessionManager: sm,
	}
}

// loginRequest represents a login request
type loginRequest struct {
	username string
	password string
}

func (l *loginRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal login request: %w", err)
	}
	l.username = raw["username"]
	l.password = raw["password"]
	return nil
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success   bool   `json:"success"`
	Name      string `json:"name,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Login verifies teacher credentials and opens a browser session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.username == "" || req.password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	teacher, err := h.teachers.GetTeacher(r.Context(), req.username)
	if err != nil {
		log.Printf("Failed to look up teacher %s: %v", sanitizeForLog(req.username), err)
		respondError(w, http.StatusServiceUnavailable, "credentials could not be checked")
		return
	}
	// Unknown user and wrong password answer identically.
	if teacher == nil || bcrypt.CompareHashAndPassword([]byte(teacher.PasswordHash), []byte(req.password)) != nil {
		respondJSON(w, http.StatusUnauthorized, LoginResponse{
			Success: false,
			Error:   "invalid credentials",
		})
		return
	}

	session, err := h.sessionManager.CreateSession(teacher.Username, teacher.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.sessionManager.SetSessionCookie(w, session)

	respondJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Name:      teacher.Name,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout ends the teacher's browser session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session != nil {
		h.sessionManager.DeleteSession(session.ID)
	}

	h.sessionManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Name          string `json:"name,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status checks if the teacher is authenticated by validating the session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		Username:      session.Username,
		Name:          session.Name,
		ExpiresAt:     session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
