// Package server provides the read-only HTTP status surface of the monitor:
// health, run status, instrument state and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/divmon/internal/domain"
	"github.com/aristath/divmon/internal/monitor"
	"github.com/aristath/divmon/internal/state"
)

// Config holds server configuration.
type Config struct {
	Log         zerolog.Logger
	Port        int
	Runner      *monitor.Runner
	Store       *state.Store
	Instruments []domain.Instrument
}

// Server is the HTTP status server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	handlers *Handlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		handlers: NewHandlers(cfg.Log, cfg.Runner, cfg.Store, cfg.Instruments),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handlers.HandleStatus)
		r.Get("/instruments", s.handlers.HandleInstruments)
		r.Get("/system", s.handlers.HandleSystem)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
