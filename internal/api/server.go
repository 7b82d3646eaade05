// Package api provides the HTTP API server and handlers for the coloring catalog.
// JSON reads are huma operations; multipart writes are plain chi handlers that
// answer with a service.WriteResult.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/colorbook/colorbook-server/internal/ratelimit"
	"github.com/colorbook/colorbook-server/internal/sse"
	"github.com/colorbook/colorbook-server/internal/storage"
)

// Config holds HTTP-level settings.
type Config struct {
	AllowedOrigins  []string
	MaxUploadBytes  int64
	WritesPerSecond float64
	WriteBurst      int
	// Buckets that /assets may serve from.
	Buckets []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services     *Services
	objects      storage.ObjectStore
	config       Config
	router       *chi.Mux
	api          huma.API
	writeLimiter *ratelimit.KeyedRateLimiter
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, objects storage.ObjectStore, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = MaxUploadSize
	}
	if cfg.WritesPerSecond <= 0 {
		cfg.WritesPerSecond = 5
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = 10
	}

	s := &Server{
		services:     services,
		objects:      objects,
		config:       cfg,
		router:       chi.NewRouter(),
		writeLimiter: ratelimit.New(cfg.WritesPerSecond, cfg.WriteBurst),
		logger:       logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Colorbook API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, e.g. for OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Shutdown releases background resources held by the server.
func (s *Server) Shutdown() error {
	s.writeLimiter.Stop()
	return nil
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerCategoryRoutes()
	s.registerPageRoutes()
	s.registerTagRoutes()
	s.registerSearchRoutes()
	s.registerAssetRoutes()

	if s.services.Events != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.services.Events, s.logger).ServeHTTP)
	}
}

// writes returns a router for mutating routes, rate limited per client.
func (s *Server) writes() chi.Router {
	return s.router.With(RateLimitMiddleware(s.writeLimiter, s.logger))
}
