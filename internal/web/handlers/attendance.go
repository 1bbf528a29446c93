package handlers

import (
	"log"
	"net/http"

	"github.com/classmark/classmark/internal/engine"
)

// AttendanceHandler handles attendance summary endpoints.
type AttendanceHandler struct {
	engine *engine.Engine
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(eng *engine.Engine) *AttendanceHandler {
	return &AttendanceHandler{engine: eng}
}

// Summary returns derived attendance percentages, recomputed fresh per call.
// With ?student_id= it narrows to one student; without, it covers everyone.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")

	summary, err := h.engine.Summary(r.Context(), studentID)
	if err != nil {
		log.Printf("Failed to compute attendance summary: %v", err)
		respondError(w, http.StatusServiceUnavailable, "attendance could not be read")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"students": summary})
}
