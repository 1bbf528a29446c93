package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/classmark/classmark/internal/engine"
	"github.com/classmark/classmark/internal/guard"
)

// RecognizeHandler handles recognition attempt submissions.
type RecognizeHandler struct {
	engine *engine.Engine
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(eng *engine.Engine) *RecognizeHandler {
	return &RecognizeHandler{engine: eng}
}

// recognizeRequest represents one submitted camera frame. Image carries the
// frame either as a data URL ("data:image/jpeg;base64,...") as captured by a
// browser canvas, or as bare base64. Token is the session bearer token for
// token-mode sessions; an Authorization header takes precedence.
type recognizeRequest struct {
	Image string `json:"image"`
	Token string `json:"token,omitempty"`
}

// RecognizeResponse represents the terminal outcome of one attempt.
type RecognizeResponse struct {
	Outcome     string  `json:"outcome"`
	Message     string  `json:"message"`
	StudentID   string  `json:"student_id,omitempty"`
	StudentName string  `json:"student_name,omitempty"`
	Distance    float64 `json:"distance,omitempty"`
	MarkedAt    string  `json:"marked_at,omitempty"`
}

// Submit runs one recognition attempt against a session. Every attempt gets a
// terminal outcome; outcomes that end the attempt for session reasons carry
// distinct statuses so the client can stop retrying.
func (h *RecognizeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req recognizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	frame, err := decodeFrame(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	claim := guard.Claim{
		RemoteAddr:   r.RemoteAddr,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		Token:        bearerToken(r),
	}
	if claim.Token == "" {
		claim.Token = req.Token
	}

	result, err := h.engine.Submit(r.Context(), id, claim, frame)
	if err != nil {
		// Infrastructure outcomes carry their cause here; the student only
		// ever sees the generic message.
		log.Printf("Recognition attempt on session %s failed (%s): %v", sanitizeForLog(id), result.Outcome, err)
	}

	resp := RecognizeResponse{
		Outcome: string(result.Outcome),
		Message: result.Outcome.Message(),
	}
	if result.StudentID != "" {
		resp.StudentID = result.StudentID
		resp.StudentName = result.StudentName
		resp.Distance = result.Distance
		resp.MarkedAt = result.MarkedAt.UTC().Format(time.RFC3339)
	}

	respondJSON(w, statusForOutcome(result.Outcome), resp)
}

// statusForOutcome maps recognition outcomes to HTTP statuses. Recognition
// "failures" like no_match are 200s: the request worked, the answer is no.
func statusForOutcome(o engine.Outcome) int {
	switch o {
	case engine.OutcomeSessionNotFound:
		return http.StatusNotFound
	case engine.OutcomeExpired:
		return http.StatusGone
	case engine.OutcomeDenied:
		return http.StatusForbidden
	case engine.OutcomeStoreUnavailable:
		return http.StatusServiceUnavailable
	case engine.OutcomeExtractionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

// decodeFrame accepts a data URL or bare base64 and returns the image bytes.
func decodeFrame(image string) ([]byte, error) {
	if image == "" {
		return nil, base64.CorruptInputError(0)
	}
	if idx := strings.Index(image, ";base64,"); strings.HasPrefix(image, "data:") && idx >= 0 {
		image = image[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(image)
}

// bearerToken extracts a bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
