// Package httpserver serves the dashboard, the state API, health probes
// and Prometheus metrics. It reads scanner and book state; it owns no
// business logic of its own.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/pkg/healthprobe"
)

// StateSource exposes the latest scan state. *scanner.Scanner satisfies
// it; tests substitute fakes.
type StateSource interface {
	State() *scanner.State
}

// Server provides the HTTP surface of the scanner.
type Server struct {
	server *http.Server
	hub    *Hub
	state  *stateHandler
	logger *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Book          *arbitrage.Book
	Scans         StateSource
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	state := newStateHandler(cfg.Book, cfg.Scans, cfg.Logger)
	hub := NewHub(cfg.Logger)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/", handleIndex)
	r.Get("/api/state", state.HandleState)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())
	r.Get("/ws", hub.HandleWS(state))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server: server,
		hub:    hub,
		state:  state,
		logger: cfg.Logger,
	}
}

// Start starts the HTTP server and its websocket hub.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Broadcast fans an event out to every connected dashboard client.
func (s *Server) Broadcast(eventType string, data any) {
	s.hub.Broadcast(eventType, data)
}

// BroadcastState pushes a full state frame, the same payload a client
// receives on connect.
func (s *Server) BroadcastState() {
	s.hub.Broadcast("state", s.state.snapshot())
}

// Shutdown gracefully shuts down the HTTP server and disconnects all
// dashboard clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	s.hub.Stop()

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
