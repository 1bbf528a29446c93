package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/classmark/classmark/internal/engine"
	"github.com/classmark/classmark/internal/guard"
	"github.com/classmark/classmark/internal/session"
	"github.com/classmark/classmark/internal/web/middleware"
)

// SessionsHandler handles attendance session lifecycle endpoints.
type SessionsHandler struct {
	engine    *engine.Engine
	publicURL string // base URL for join links; empty means derive from the request
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(eng *engine.Engine, publicURL string) *SessionsHandler {
	return &SessionsHandler{
		engine:    eng,
		publicURL: publicURL,
	}
}

// createSessionRequest represents a session creation request.
type createSessionRequest struct {
	Subject    string `json:"subject"`
	Mode       string `json:"mode"`
	Subnet     string `json:"subnet,omitempty"`
	TTLMinutes int    `json:"ttl_minutes,omitempty"`
}

// SessionResponse represents a created or queried session.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	Mode      string `json:"mode"`
	Token     string `json:"token,omitempty"`
	Subnet    string `json:"subnet,omitempty"`
	ExpiresAt string `json:"expires_at"`
	JoinURL   string `json:"join_url"`
}

// Create opens a new attendance session. In subnet mode the network prefix
// defaults to the creating teacher's own address, so a teacher on the
// classroom hotspot admits exactly that hotspot. In token mode a fresh bearer
// token is generated and returned once, here.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}

	teacher := middleware.TeacherFromContext(r.Context())
	if teacher == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pred := session.Predicate{Mode: session.Mode(req.Mode)}
	switch pred.Mode {
	case session.ModeSubnet:
		pred.SubnetPrefix = req.Subnet
		if pred.SubnetPrefix == "" {
			pred.SubnetPrefix = guard.PrefixOf(guard.ClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For")))
		}
	case session.ModeToken:
		pred.Token = session.NewToken()
	default:
		respondError(w, http.StatusBadRequest, "mode must be \"subnet\" or \"token\"")
		return
	}

	ttl := time.Duration(req.TTLMinutes) * time.Minute
	s, err := h.engine.CreateSession(r.Context(), req.Subject, teacher.Username, pred, ttl)
	if err != nil {
		log.Printf("Failed to create session for %s: %v", sanitizeForLog(req.Subject), err)
		respondError(w, http.StatusServiceUnavailable, "failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, SessionResponse{
		SessionID: s.ID,
		Subject:   s.Subject,
		Mode:      string(s.Predicate.Mode),
		Token:     s.Predicate.Token,
		Subnet:    s.Predicate.SubnetPrefix,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		JoinURL:   h.joinURL(r, s.ID),
	})
}

// StatusResponse for a session is public: students poll it to know whether
// the window is still open before pointing a camera at themselves.
type sessionStatusResponse struct {
	State     string `json:"state"`
	Subject   string `json:"subject,omitempty"`
	Mode      string `json:"mode,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// Status reports whether a session is live, expired or unknown.
func (h *SessionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.engine.Status(r.Context(), id)
	if err != nil {
		log.Printf("Failed to resolve session %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusServiceUnavailable, "session could not be checked")
		return
	}

	resp := sessionStatusResponse{State: string(st.State)}
	if st.State == engine.StateNotFound {
		respondJSON(w, http.StatusNotFound, resp)
		return
	}
	resp.Subject = st.Subject
	resp.Mode = string(st.Mode)
	resp.ExpiresAt = st.ExpiresAt.UTC().Format(time.RFC3339)
	respondJSON(w, http.StatusOK, resp)
}

// Stop ends a session early. Stopping an already-stopped or unknown session
// succeeds; the end state is the same either way.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.engine.StopSession(r.Context(), id); err != nil {
		log.Printf("Failed to stop session %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusServiceUnavailable, "failed to stop session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// QR renders the session join link as a QR code PNG for projecting onto the
// classroom screen.
func (h *SessionsHandler) QR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.engine.Status(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "session could not be checked")
		return
	}
	if st.State == engine.StateNotFound {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	png, err := qrcode.Encode(h.joinURL(r, id), qrcode.Medium, 512)
	if err != nil {
		log.Printf("Failed to render QR for session %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// joinURL builds the student-facing link for a session.
func (h *SessionsHandler) joinURL(r *http.Request, id string) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/attendance/" + id
}
