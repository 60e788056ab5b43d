// Package core provides the API chassis for autopost. It builds a chi router
// and enforces the cross-cutting concerns (recovery, request correlation,
// logging, rate limiting, authentication and error rendering) before
// requests reach the handlers in internal/api/handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"autopost/internal/config"
)

// RouteRegistrar mounts a handler's routes on a router group.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the dependencies of the HTTP surface so tests can
// inject fakes for each of them.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// Authenticator resolves user access tokens; TriggerAuthenticator
	// resolves the shared process-due secret.
	Authenticator        Authenticator
	TriggerAuthenticator Authenticator
	SecurityService      SecurityService
	RateLimiter          *RateLimiter
	HealthProbes         []HealthProbe

	// Route groups, populated by the entry point before MountRoutes.
	TriggerRoutes []RouteRegistrar
	UserRoutes    []RouteRegistrar

	closers []func()
	router  *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty router.
// The caller mounts routes via MountRoutes after populating the route groups.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run, in reverse registration order, during
// Shutdown. Used for connection pools owned by the entry point.
func (s *Server) OnShutdown(fn func()) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases resources registered with OnShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return ctx.Err()
}
