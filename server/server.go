// Package server implements the worktrack HTTP server: REST API, auth, and SSE event streaming.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/worktrack/config"
	"github.com/GoCodeAlone/worktrack/server/api"
	"github.com/GoCodeAlone/worktrack/server/stream"
)

// Server is the worktrack HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	handlers *api.Handlers
	stream   *stream.Hub

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	routesOnce sync.Once
}

// New creates a Server serving h. A nil hub disables GET /events.
func New(cfg config.Config, h *api.Handlers, hub *stream.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		logger:   logger,
		handlers: h,
		stream:   hub,
	}
}

// Handler returns the fully routed handler.
func (s *Server) Handler() http.Handler {
	s.registerRoutes()
	return s.mux
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.routesOnce.Do(func() {
		if s.handlers.Logger == nil {
			s.handlers.Logger = s.logger
		}

		// Public routes (no auth required)
		s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		s.mux.HandleFunc("GET /api/status", s.handlers.StatusHandler())

		// SSE: token may come as a query parameter because EventSource can't set headers
		if s.stream != nil {
			s.mux.Handle("GET /events", s.authMiddleware(http.HandlerFunc(s.stream.ServeSSE)))
		}

		// Protected API, wrapped in auth middleware
		apiMux := http.NewServeMux()
		s.handlers.RegisterRoutes(apiMux)
		apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

		s.mux.Handle("/api/", s.authMiddleware(apiMux))
	})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an error in the API's error shape.
func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, api.ErrorBody{Error: msg, Code: code})
}
