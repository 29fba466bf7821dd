package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/utils/metrics"
)

// DefaultMaxUploadSize bounds the request body of a post request
const DefaultMaxUploadSize = 32 << 20

// Config holds HTTP server configuration
type Config struct {
	Addr string
	// Prefix is the path the hub mounts the service under, e.g.
	// /services/jupyterpost/. Posts are accepted on any path; the prefix is
	// reported in logs.
	Prefix string
	// Signature is appended to the caller name in front of each message
	Signature     string
	MaxUploadSize int64
}

// NewConfig creates a Config with defaults applied
func NewConfig(addr, prefix, signature string, maxUploadSize int64) *Config {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Config{
		Addr:          addr,
		Prefix:        normalizePrefix(prefix),
		Signature:     signature,
		MaxUploadSize: maxUploadSize,
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

// Server represents the HTTP server
type Server struct {
	*http.Server
	router chi.Router
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	cfg *Config,
	auth interfaces.Authenticator,
	deliverer interfaces.Deliverer,
) *Server {
	router := chi.NewRouter()
	authMiddleware := NewMiddleware(auth)
	postHandler := NewPostHandler(cfg, deliverer)

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth)
	router.Handle("/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireToken)
		// every path is accepted, the service prefix included
		r.Post("/", postHandler.HandlePost)
		r.Post("/*", postHandler.HandlePost)
	})

	ctxlog.From(ctx).Debug("HTTP routes configured", "prefix", cfg.Prefix)

	return &Server{
		Server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
		router: router,
	}
}

// handleHealth handles health check requests
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "mmpost",
	}); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode health response", "error", err)
	}
}

// writeJSON writes v as a JSON response
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{
		"error": message,
	})
}
