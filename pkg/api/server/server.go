// Package server wires the workbench handlers into a chi router.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apiconfig "forecast_workbench/pkg/api/config"
	"forecast_workbench/pkg/api/workbench"
	"forecast_workbench/pkg/core/config"
	"forecast_workbench/pkg/core/session"
	"forecast_workbench/pkg/core/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config holds server configuration
type Config struct {
	Server    config.ServerConfig
	Workbench config.WorkbenchConfig
	Sessions  *session.Manager
	Scenarios *store.ScenarioStore // nil disables scenario endpoints
	Log       zerolog.Logger
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	sessions  *session.Manager
	scenarios *store.ScenarioStore
	started   time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		sessions:  cfg.Sessions,
		scenarios: cfg.Scenarios,
		started:   time.Now(),
	}

	s.setupMiddleware(cfg.Server)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         addr(cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func addr(port int) string { return fmt.Sprintf(":%d", port) }

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware(cfg config.ServerConfig) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	if cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Link", "Content-Disposition"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)

	storage := ""
	if s.scenarios != nil {
		storage = s.scenarios.Backend()
	}
	configHandler := apiconfig.NewHandler(cfg.Workbench, storage)
	wb := workbench.NewHandler(cfg.Sessions, cfg.Scenarios, cfg.Workbench, cfg.Log)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/config", configHandler.HandleConfig)
		wb.Routes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	}
	if s.scenarios != nil {
		resp["storage"] = s.scenarios.Backend()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
