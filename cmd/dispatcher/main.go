// Package main is the entrypoint for the dispatcher Lambda function.
//
// An EventBridge rule invokes the dispatcher every minute with a
// DispatchPayload. The handler takes a per-minute job lock so overlapping
// deliveries of one tick run once, records job history and runs the
// due-schedule batch pass.
//
// Payload:
//
//	{"task": "process_due", "reference_time": "2026-02-06T03:15:00Z"}
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"autopost/internal/app"
	"autopost/internal/config"
	"autopost/internal/scheduler"
)

// JobRunner is the part of scheduler.JobRunner the handler needs.
type JobRunner interface {
	Run(ctx context.Context, payload scheduler.DispatchPayload) (*scheduler.JobResult, error)
}

// Handler holds the dependencies for the dispatcher Lambda handler function.
type Handler struct {
	Runner JobRunner
	Logger *slog.Logger
}

// Handle runs one dispatch. Record-level failures are returned in the result.
// An error is returned only when the pass itself failed; the job lock is
// released first, so an async retry of the same tick runs the pass again.
func (h *Handler) Handle(ctx context.Context, payload scheduler.DispatchPayload) (*scheduler.JobResult, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "dispatcher invoked", "task", string(payload.Task))

	res, err := h.Runner.Run(ctx, payload)
	if err != nil {
		logger.ErrorContext(ctx, "dispatch failed",
			"task", string(payload.Task),
			"error", err,
		)
		return nil, err
	}

	if res.Skipped {
		logger.InfoContext(ctx, "dispatch skipped", "lock_id", res.LockID)
		return res, nil
	}

	logger.InfoContext(ctx, "dispatch complete",
		"lock_id", res.LockID,
		"processed", res.Summary.Processed,
		"paused", res.Summary.Paused,
		"skipped", res.Summary.Skipped,
		"errors", len(res.Summary.Errors),
	)
	return res, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("dispatcher Lambda initializing (cold start)")

	handler, err := newHandler(logger)
	if err != nil {
		logger.Error("dispatcher initialization failed", "error", err)
		os.Exit(1)
	}

	lambda.Start(handler.Handle)
}

// newHandler loads configuration and wires the job runner. Dependencies are
// built once per cold start and reused across invocations.
func newHandler(logger *slog.Logger) (*Handler, error) {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	workerID := uuid.New().String()
	logger.Info("dispatcher Lambda initialized", "worker_id", workerID)

	return &Handler{
		Runner: &scheduler.JobRunner{
			Processor:  a.Processor,
			JobLock:    a.JobLocks,
			JobHistory: a.JobHistory,
			Metrics:    a.Metrics,
			WorkerID:   workerID,
			Logger:     logger,
		},
		Logger: logger,
	}, nil
}
