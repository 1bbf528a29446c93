// Package web exposes the attendance engine over HTTP. Teacher endpoints sit
// behind a cookie session; student endpoints (session status, recognition)
// are open, their access control lives in the session predicate itself.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/classmark/classmark/internal/engine"
	"github.com/classmark/classmark/internal/storage"
	"github.com/classmark/classmark/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	engine         *engine.Engine
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
}

// NewServer creates a new web server.
func NewServer(eng *engine.Engine, teachers storage.TeacherRepository, host string, port int, sessionSecret, publicURL string) *Server {
	r := chi.NewRouter()

	sessionManager := middleware.NewSessionManager(sessionSecret)

	s := &Server{
		engine:         eng,
		router:         r,
		sessionManager: sessionManager,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())

	// Set up routes
	s.setupRoutes(teachers, publicURL)

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
