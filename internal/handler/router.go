package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router assembles the HTTP API.
type Router struct {
	authHandler    *AuthHandler
	usersHandler   *UsersHandler
	authMiddleware func(http.Handler) http.Handler
	httpMetrics    func(http.Handler) http.Handler
	health         HealthChecker
	maxBodySize    int64
	logger         zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	AuthHandler    *AuthHandler
	UsersHandler   *UsersHandler
	AuthMiddleware func(http.Handler) http.Handler
	HTTPMetrics    func(http.Handler) http.Handler
	Health         HealthChecker
	MaxBodySize    int64
	Logger         zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		authHandler:    config.AuthHandler,
		usersHandler:   config.UsersHandler,
		authMiddleware: config.AuthMiddleware,
		httpMetrics:    config.HTTPMetrics,
		health:         config.Health,
		maxBodySize:    config.MaxBodySize,
		logger:         config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.requestLogger)
	if rt.httpMetrics != nil {
		r.Use(rt.httpMetrics)
	}
	if rt.maxBodySize > 0 {
		r.Use(bodySizeLimit(rt.maxBodySize))
	}

	// Health check (no auth)
	r.Get("/health", rt.handleHealth)

	// Public auth routes
	rt.authHandler.RegisterPublicRoutes(r)

	// Everything else requires a valid bearer token
	r.Group(func(r chi.Router) {
		r.Use(rt.authMiddleware)
		rt.authHandler.RegisterProtectedRoutes(r)
		rt.usersHandler.RegisterRoutes(r)
	})

	return r
}

// handleHealth handles health check requests. It pings the database so a
// green health check means the API can actually serve traffic.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.health.Health(ctx); err != nil {
			rt.logger.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// requestLogger logs each request with method, path, status, and duration.
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// bodySizeLimit caps the request body size.
func bodySizeLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
