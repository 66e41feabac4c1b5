// Package api provides the REST API server for the playlist sync service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chapterline/playlist-sync-server/internal/api/admin"
	v0 "github.com/chapterline/playlist-sync-server/internal/api/v0"
	"github.com/chapterline/playlist-sync-server/internal/cache"
	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/logger"
	"github.com/chapterline/playlist-sync-server/internal/store"
	pkgsync "github.com/chapterline/playlist-sync-server/internal/sync"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
)

// Deps carries the collaborators the HTTP layer serves.
type Deps struct {
	Config *config.Config
	States state.PlaylistStateService
	Videos store.VideoStore
	Runner admin.SyncRunner
	Purger pkgsync.Purger
	Cache  *cache.Cache

	// AdminToken guards the admin routes; empty disables them entirely
	AdminToken string
}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewServer creates and configures the HTTP router with the given
// dependencies and options
func NewServer(deps Deps, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		middlewares: []func(http.Handler) http.Handler{},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	// Health and version endpoints at root
	r.Mount("/", v0.HealthRouter())

	// Public read API
	r.Mount("/v0", v0.Router(deps.Config, deps.States, deps.Videos, deps.Cache))

	// Admin API, only when a token is configured
	if deps.AdminToken != "" {
		r.Mount("/admin/v0", admin.Router(
			deps.AdminToken,
			deps.Runner,
			deps.States,
			deps.Videos,
			deps.Cache,
			deps.Purger,
		))
	} else {
		logger.Warn("No admin token configured; admin routes are disabled")
	}

	return r
}

// DefaultMiddlewares returns the standard middleware chain for the server
func DefaultMiddlewares(requestTimeout time.Duration) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		LoggingMiddleware,
	}
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debugf("HTTP %s %s %d %s %s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}
