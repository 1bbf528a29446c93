package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const teacherContextKey contextKey = "teacher_session"

// RequireTeacher is middleware that requires a valid teacher session.
// Student-facing routes (status, recognize) never use it.
func RequireTeacher(sm *SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := sm.GetSessionFromRequest(r)
			if s == nil {
				http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), teacherContextKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TeacherFromContext retrieves the teacher session from the request context.
func TeacherFromContext(ctx context.Context) *TeacherSession {
	s, ok := ctx.Value(teacherContextKey).(*TeacherSession)
	if !ok {
		return nil
	}
	return s
}

// SetTeacherInContext adds a teacher session to the context.
// This is primarily for testing - use RequireTeacher middleware in production.
func SetTeacherInContext(ctx context.Context, s *TeacherSession) context.Context {
	return context.WithValue(ctx, teacherContextKey, s)
}
