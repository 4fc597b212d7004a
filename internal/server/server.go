// Package server is the read-only query surface over the version catalog,
// plus an admin endpoint that starts a pipeline run.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/shadowjar/internal/catalog"
	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/metrics"
)

// Scheduler is the part of the daemon scheduler the server drives.
type Scheduler interface {
	TriggerNow() error
	Running() bool
}

// Server serves catalog lookups over HTTP.
type Server struct {
	addr      string
	router    *chi.Mux
	server    *http.Server
	catalog   catalog.Reader
	scheduler Scheduler
	errs      *errors.HTTPErrorAdapter
	logger    *slog.Logger

	metricsPath string
	registry    *prom.Registry
}

// Option configures a Server.
type Option func(*Server)

func WithScheduler(s Scheduler) Option { return func(srv *Server) { srv.scheduler = s } }
func WithLogger(l *slog.Logger) Option { return func(srv *Server) { srv.logger = l } }

// WithMetrics exposes reg in Prometheus text format at path.
func WithMetrics(path string, reg *prom.Registry) Option {
	return func(srv *Server) {
		srv.metricsPath = path
		srv.registry = reg
	}
}

// New creates a server bound to addr reading from cat.
func New(addr string, cat catalog.Reader, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		router:  chi.NewRouter(),
		catalog: cat,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errs = errors.NewHTTPErrorAdapter(s.logger)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/version/{server_type}", s.handleVersions)
		r.Get("/version/{server_type}/latest", s.handleLatest)
		r.Get("/flavors", s.handleFlavors)
		r.Get("/status", s.handleStatus)
		r.Post("/build/trigger", s.handleTrigger)
	})

	if s.registry != nil && s.metricsPath != "" {
		s.router.Method(http.MethodGet, s.metricsPath, metrics.HTTPHandler(s.registry))
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until Shutdown. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Query surface listening", slog.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapError(err, errors.CategoryNetwork, "query surface failed").
			WithContext("addr", s.addr).Fatal().Build()
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
