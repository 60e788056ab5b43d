package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"autopost/internal/types"
)

// defaultRequestTimeout applies when the config carries no RequestTimeout.
const defaultRequestTimeout = 30 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes registers the global middleware chain, the v1 route groups and
// the health check.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)
	s.router.Get("/health", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order:
//
//  1. Recoverer        - outermost so every panic is caught.
//  2. RequestID        - correlation ID for logs and error bodies.
//  3. SecurityHeaders  - present on every response, errors included.
//  4. RequestLogger    - structured access log with redacted headers.
//  5. IPSecurity       - rejects addresses with repeated auth failures.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.IPSecurityMiddleware)
}

// mountV1 registers the trigger group and the user group. Each group is rate
// limited and authenticated on its own credential; the trigger group gets the
// longer batch deadline.
func (s *Server) mountV1(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(ContextTimeoutMiddleware(s.triggerTimeout()))
		r.Use(s.RateLimit)
		r.Use(s.TriggerAuthMiddleware)
		r.Use(s.RequireActor(types.ActorTypeTrigger))
		for _, registrar := range s.TriggerRoutes {
			registrar(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(ContextTimeoutMiddleware(s.requestTimeout()))
		r.Use(s.RateLimit)
		r.Use(s.AuthMiddleware)
		r.Use(s.RequireActor(types.ActorTypeUser))
		for _, registrar := range s.UserRoutes {
			registrar(r)
		}
	})
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) triggerTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.TriggerTimeout > 0 {
		return s.Config.Server.TriggerTimeout
	}
	return s.requestTimeout()
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// observe it through their context; the response is whatever they write.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses the incoming X-Request-Id or generates one, stores
// it in the context and echoes it as a response header.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
