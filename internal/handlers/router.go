package handlers

import (
	"net/http"

	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/Varun5711/shortlinks/internal/middleware"
	"github.com/gorilla/mux"
)

type RouterConfig struct {
	Links   *LinkHandler
	Docs    *SwaggerHandler
	Auth    *middleware.AuthMiddleware
	Limiter *middleware.RateLimiter
	Log     *logger.Logger
	// NewRequestID mints ids for requests that arrive without one.
	NewRequestID func() string
}

// NewRouter wires the public routes behind recovery, request logging and
// rate limiting. Only DELETE and PUT require a principal.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	links := r.PathPrefix("/links").Subrouter()
	links.HandleFunc("/shorten", cfg.Links.Shorten).Methods(http.MethodPost)
	links.HandleFunc("/search", cfg.Links.Search).Methods(http.MethodGet)
	links.HandleFunc("/{code}/stats", cfg.Links.Stats).Methods(http.MethodGet)
	links.HandleFunc("/{code}", cfg.Links.Redirect).Methods(http.MethodGet)
	links.HandleFunc("/{code}", cfg.Auth.RequireAuth(cfg.Links.Delete)).Methods(http.MethodDelete)
	links.HandleFunc("/{code}", cfg.Auth.RequireAuth(cfg.Links.ChangeAlias)).Methods(http.MethodPut)

	r.HandleFunc("/expiration_delete/delete", cfg.Links.TriggerSweep).Methods(http.MethodGet)
	r.HandleFunc("/health", cfg.Links.Health).Methods(http.MethodGet)

	if cfg.Docs != nil {
		cfg.Docs.RegisterRoutes(r)
	}

	var h http.Handler = r
	if cfg.Limiter != nil {
		h = cfg.Limiter.Middleware(h)
	}
	h = middleware.Logging(cfg.Log, cfg.NewRequestID)(h)
	h = middleware.Recovery(cfg.Log)(h)
	return h
}

// ClientKey is the rate limiting key for a request.
func ClientKey(r *http.Request) string {
	return getClientIP(r)
}
