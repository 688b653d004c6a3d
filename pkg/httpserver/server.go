// Package httpserver exposes password and face authentication over a JSON
// HTTP API.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mmcdole/viking-faceauth/pkg/authentication"
	"github.com/mmcdole/viking-faceauth/pkg/logging"
)

// DefaultMaxBodyBytes bounds request bodies, which may carry base64 images
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// Config holds the listener settings
type Config struct {
	ListenAddr   string
	Port         int
	MaxBodyBytes int64
}

// Server is the authentication API server
type Server struct {
	auth         *authentication.Authenticator
	router       *chi.Mux
	httpServer   *http.Server
	maxBodyBytes int64

	startTime    time.Time
	active       atomic.Int32
	faceAccepted atomic.Uint64
	faceRejected atomic.Uint64
}

// New creates a new Server
func New(config Config, auth *authentication.Authenticator) (*Server, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		auth:         auth,
		router:       chi.NewRouter(),
		maxBodyBytes: config.MaxBodyBytes,
		startTime:    time.Now(),
	}

	s.router.Use(chiMiddleware.RealIP)
	s.router.Use(s.trackRequests)
	s.router.Use(chiMiddleware.Recoverer)
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.ListenAddr, config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/face-login", s.handleFaceLogin)

		r.Post("/users/{username}/face", s.handleEnrollFace)
		r.Delete("/users/{username}/face", s.handleDisableFace)

		r.Post("/face/match", s.handleMatch)
	})
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	logging.App.Info("Starting HTTP server", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving HTTP: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.App.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// ActiveRequests implements status.MetricsProvider
func (s *Server) ActiveRequests() int32 {
	return s.active.Load()
}

// StartTime implements status.MetricsProvider
func (s *Server) StartTime() time.Time {
	return s.startTime
}

// FaceLogins implements status.MetricsProvider
func (s *Server) FaceLogins() (accepted, rejected uint64) {
	return s.faceAccepted.Load(), s.faceRejected.Load()
}
