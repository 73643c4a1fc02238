// Package server is the optional ops listener: health, metrics and the
// recent audit trail. The keeper has no other inbound surface.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/poolkeeper/internal/server/handler"
	"github.com/alanyoungcy/poolkeeper/internal/server/middleware"
)

// Config holds the ops listener configuration.
type Config struct {
	Addr string
}

// Handlers aggregates the handlers the server registers. Nil entries are
// not routed.
type Handlers struct {
	Health  *handler.HealthHandler
	Audit   *handler.AuditHandler
	Metrics http.Handler
}

// Server is the ops HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on a ServeMux.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "ops"))
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /health", handlers.Health.HealthCheck)
	}
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /audit", handlers.Audit.List)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("ops listener starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("ops listener shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
