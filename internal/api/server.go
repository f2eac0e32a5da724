// Package api exposes the Libris HTTP API: huma operations on a chi router
// with a versioned JSON envelope around every response.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/librisapp/libris-server/internal/cache"
	"github.com/librisapp/libris-server/internal/metrics"
	"github.com/librisapp/libris-server/internal/ratelimit"
	"github.com/librisapp/libris-server/internal/search"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/store"
)

// Services groups the business services the handlers call.
type Services struct {
	Auth      *service.AuthService
	Catalog   *service.CatalogService
	Favorites *service.FavoriteService
}

// Backends are the components /health probes. Any may be nil.
type Backends struct {
	Store  store.Store
	Cache  cache.RecommendationCache
	Search *search.Index
}

// Options configures the HTTP surface.
type Options struct {
	Version            string
	AllowedOrigins     []string
	LoginRatePerMinute int // 0 disables auth rate limiting
	MetricsEnabled     bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services        *Services
	backends        Backends
	router          *chi.Mux
	api             huma.API
	authRateLimiter *ratelimit.KeyedRateLimiter
	logger          *slog.Logger
}

// NewServer builds the router and registers every route.
func NewServer(services *Services, backends Backends, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(authMiddleware(services.Auth))
	router.Use(requestLogger(logger))
	if opts.MetricsEnabled {
		router.Use(metrics.Middleware)
		router.Handle("/metrics", promhttp.Handler())
	}

	humaConfig := huma.DefaultConfig("Libris API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	RegisterErrorHandler()

	s := &Server{
		services: services,
		backends: backends,
		router:   router,
		api:      humachi.New(router, humaConfig),
		logger:   logger,
	}
	if opts.LoginRatePerMinute > 0 {
		s.authRateLimiter = ratelimit.PerMinute(opts.LoginRatePerMinute)
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerPublicationRoutes()
	s.registerWriterRoutes()
	s.registerShelfRoutes()
	s.registerSearchRoutes()
	s.registerFavoriteRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.authRateLimiter != nil {
		s.authRateLimiter.Stop()
	}
}

// bearerAuth marks an operation as requiring a token in the OpenAPI document.
var bearerAuth = []map[string][]string{{"bearer": {}}}
