// Package web provides the HTTP server for browsing the table registry and
// downloading seed artifacts.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/seedexport/internal/config"
	"github.com/JonMunkholm/seedexport/internal/core"
	"github.com/JonMunkholm/seedexport/internal/web/middleware"
	"github.com/JonMunkholm/seedexport/internal/web/templates"
)

// Exporter is the export capability the server needs.
type Exporter interface {
	Run(ctx context.Context, tables []core.TableSpec) (*core.ExportResult, error)
	ExportTable(ctx context.Context, table core.TableSpec) (core.CompiledStatement, error)
}

// Server is the HTTP server for the exporter.
type Server struct {
	exporter Exporter
	registry *core.Registry
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server

	// exports coalesces concurrent full-export requests into one run.
	exports singleflight.Group
	history *core.History
}

// NewServer creates a new Server instance.
func NewServer(exporter Exporter, registry *core.Registry, cfg *config.Config) *Server {
	s := &Server{
		exporter: exporter,
		registry: registry,
		cfg:      cfg,
		router:   chi.NewRouter(),
		history:  core.NewHistory(cfg.Server.HistorySize),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	index := templates.Index(templates.NewIndexData(s.cfg.Source.Kind, s.registry))
	s.router.Method(http.MethodGet, "/", templ.Handler(index))
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Server.APIKeys))

		r.Get("/tables", s.handleListTables)
		r.Get("/export", s.handleExport)
		r.Get("/export/{table}", s.handleExportTable)
		r.Get("/runs", s.handleListRuns)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// exportTimeout bounds one run started by the server.
func (s *Server) exportTimeout() time.Duration {
	if s.cfg.Export.Timeout > 0 {
		return s.cfg.Export.Timeout
	}
	return 5 * time.Minute
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
