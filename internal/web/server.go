// Package web serves sanity checks of curator bulk index files over HTTP.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/bulkindex/internal/blob"
	"github.com/JonMunkholm/bulkindex/internal/config"
	"github.com/JonMunkholm/bulkindex/internal/core"
	appmw "github.com/JonMunkholm/bulkindex/internal/web/middleware"
)

// Pinger reports whether the reference database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Archiver, Pinger and Metrics
// may be nil.
type Deps struct {
	Runner   *core.Runner
	Limiter  *core.RunLimiter
	Archiver *blob.Archiver
	Pinger   Pinger
	Metrics  http.Handler
	Clock    func() time.Time
}

// Server is the HTTP preview service.
type Server struct {
	cfg      config.ServerConfig
	runner   *core.Runner
	limiter  *core.RunLimiter
	archiver *blob.Archiver
	pinger   Pinger
	metrics  http.Handler
	clock    func() time.Time

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		runner:   deps.Runner,
		limiter:  deps.Limiter,
		archiver: deps.Archiver,
		pinger:   deps.Pinger,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		router:   chi.NewRouter(),
	}
	if s.limiter == nil {
		s.limiter = core.NewRunLimiter(cfg.MaxConcurrentRuns, cfg.RunWaitTime)
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.TrustedProxyList()))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(appmw.APIKeyAuth(s.cfg.APIKeyList()))

		r.Post("/preview", s.handlePreview)
		r.Get("/runs/{runID}", s.handleListArtifacts)
		r.Get("/runs/{runID}/{name}", s.handleArtifact)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.cfg.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running previews.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
