package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/classmark/classmark/internal/storage"
	"github.com/classmark/classmark/internal/web/handlers"
	"github.com/classmark/classmark/internal/web/middleware"
)

func (s *Server) setupRoutes(teachers storage.TeacherRepository, publicURL string) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(teachers, s.sessionManager)
	sessionsHandler := handlers.NewSessionsHandler(s.engine, publicURL)
	recognizeHandler := handlers.NewRecognizeHandler(s.engine)
	attendanceHandler := handlers.NewAttendanceHandler(s.engine)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Student-facing routes. Access control is the session's own
		// predicate, evaluated per submission; a teacher cookie is neither
		// needed nor checked here.
		r.Get("/sessions/{id}", sessionsHandler.Status)
		r.Post("/sessions/{id}/recognize", recognizeHandler.Submit)

		// Teacher routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTeacher(s.sessionManager))

			r.Post("/sessions", sessionsHandler.Create)
			r.Delete("/sessions/{id}", sessionsHandler.Stop)
			r.Get("/sessions/{id}/qr", sessionsHandler.QR)
			r.Get("/attendance/summary", attendanceHandler.Summary)
		})
	})
}
