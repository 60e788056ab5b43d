// Package main is the entry point for the autopost API server.
//
// It loads configuration, wires the database, upstream clients and scheduler
// services through internal/app, builds the HTTP server with the core chassis
// and serves until SIGINT or SIGTERM.
//
// Two route groups are exposed under /v1:
//
//	POST /v1/trigger/process-due   shared trigger secret
//	/v1/schedule, /v1/posts, ...   per-user access token
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autopost/internal/api/handlers"
	"autopost/internal/app"
	"autopost/internal/auth"
	"autopost/internal/config"
	"autopost/internal/core"
)

// rateLimitEntries bounds the number of tracked route/client buckets.
const rateLimitEntries = 500

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("autopost API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}

	srv, err := buildServer(cfg, logger, serverDeps{
		Runner:    a.Processor,
		Metrics:   a.Metrics,
		Schedules: a.Service,
		Posts:     a.Service,
		Accounts:  a.Service,
		Tokens:    a.Credentials,
		Database:  a.Pool,
	})
	if err != nil {
		a.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(a.Close)

	return runHTTPServer(srv, cfg, logger)
}

// serverDeps are the services the HTTP surface is built on.
type serverDeps struct {
	Runner    handlers.BatchRunner
	Metrics   handlers.BatchMetrics
	Schedules handlers.ScheduleService
	Posts     handlers.PostService
	Accounts  handlers.AccountService
	Tokens    auth.TokenLookup
	Database  core.Pinger
}

// buildServer assembles the chassis, authenticators and route groups, then
// mounts the routes.
func buildServer(cfg *config.Config, logger *slog.Logger, deps serverDeps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}

	tracker, err := auth.NewFailureTracker(auth.DefaultSecurityConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating failure tracker: %w", err)
	}
	limiter, err := core.NewRateLimiter(cfg.Server.RateLimitPerMinute, rateLimitEntries)
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}

	srv.SecurityService = tracker
	srv.RateLimiter = limiter
	srv.TriggerAuthenticator = auth.NewTriggerVerifier(cfg.Security.TriggerSecretHash)
	srv.Authenticator = auth.NewTokenAuthenticator(deps.Tokens, logger)
	if deps.Database != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.NewPingProbe("database", deps.Database))
	}

	trigger := handlers.NewTriggerHandler(deps.Runner, deps.Metrics, logger)
	schedules := handlers.NewScheduleHandler(deps.Schedules, srv.Validator, logger)
	posts := handlers.NewPostHandler(deps.Posts, srv.Validator, logger)
	account := handlers.NewAccountHandler(deps.Accounts, logger)

	srv.TriggerRoutes = append(srv.TriggerRoutes, trigger.RegisterRoutes)
	srv.UserRoutes = append(srv.UserRoutes,
		schedules.RegisterRoutes,
		posts.RegisterRoutes,
		account.RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// WriteTimeout must outlast the trigger route's own deadline.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.TriggerTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
