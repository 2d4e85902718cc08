package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-commerce/shrike/internal/domain"
	"github.com/opensource-commerce/shrike/internal/rules"
	"github.com/opensource-commerce/shrike/internal/velocity"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, vel *velocity.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, vel, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Synchronous scoring
		r.Post("/score", handler.Score)

		// Score retrieval
		r.Get("/scores/{id}", handler.GetScore)

		// Product retrieval and rescoring
		r.Get("/products/scored", handler.ListScored)
		r.Get("/products/{id}", handler.GetProduct)
		r.Get("/products/{id}/score", handler.GetProductScore)
		r.Post("/products/{id}/rescore", handler.Rescore)

		// Exclusion rule management
		r.Get("/exclusions", handler.ListExclusions)
		r.Post("/exclusions", handler.CreateExclusion)
		r.Get("/exclusions/{id}", handler.GetExclusion)
		r.Delete("/exclusions/{id}", handler.DeleteExclusion)
		r.Post("/exclusions/reload", handler.ReloadExclusions)

		// Per-tenant scoring settings
		r.Get("/settings", handler.GetSettings)
		r.Put("/settings", handler.UpdateSettings)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
