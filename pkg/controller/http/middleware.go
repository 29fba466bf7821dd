package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
	"github.com/secmon-lab/mmpost/pkg/domain/interfaces"
	"github.com/secmon-lab/mmpost/pkg/domain/model"
	"github.com/secmon-lab/mmpost/pkg/utils/apperr"
)

// Middleware provides authentication middleware
type Middleware struct {
	auth interfaces.Authenticator
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(auth interfaces.Authenticator) *Middleware {
	return &Middleware{
		auth: auth,
	}
}

// tokenFromRequest extracts the API token from "Authorization: token <t>"
// or "Authorization: Bearer <t>"
func tokenFromRequest(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token)
	default:
		return ""
	}
}

// RequireToken authenticates the caller and stores it in the request context
func (m *Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "missing API token")
			return
		}

		caller, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, model.ErrUnauthenticated) {
				ctxlog.From(r.Context()).Debug("Token rejected", "error", err)
				writeError(w, r, http.StatusUnauthorized, "invalid API token")
				return
			}
			apperr.Handle(r.Context(), err)
			writeError(w, r, http.StatusBadGateway, "failed to authenticate")
			return
		}

		logger := ctxlog.From(r.Context()).With("caller", caller.Name)
		ctx := ctxlog.With(model.WithCaller(r.Context(), caller), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware creates a chi-compatible logging middleware
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Embed logger from the initial context into request context
			logger := ctxlog.From(ctx).With("request_id", middleware.GetReqID(r.Context()))
			r = r.WithContext(ctxlog.With(r.Context(), logger))

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		})
	}
}
