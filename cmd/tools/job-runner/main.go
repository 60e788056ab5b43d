// Package main implements the job-runner CLI tool for running a dispatch
// directly, bypassing the AWS Lambda shim.
//
// This tool is intended for local development, manual backfilling, and
// operational debugging. It constructs a scheduler.DispatchPayload and runs
// it through the same scheduler.JobRunner the dispatcher Lambda uses, so the
// per-minute job lock and job history apply.
//
// Usage:
//
//	go run ./cmd/tools/job-runner
//	go run ./cmd/tools/job-runner --reference-time=2026-01-15T09:00:00Z
//	go run ./cmd/tools/job-runner --dry-run
//
// Configuration is read from the environment (or a .env file).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"autopost/internal/app"
	"autopost/internal/config"
	"autopost/internal/scheduler"
)

func main() {
	taskFlag := flag.String("task", string(scheduler.TaskProcessDue), "Task type to execute")
	refTimeFlag := flag.String("reference-time", "", "Override reference time (RFC3339, e.g., 2026-01-15T09:00:00Z)")
	dryRunFlag := flag.Bool("dry-run", false, "Print the JSON payload without executing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run one dispatch locally, bypassing Lambda.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	payload, err := buildPayload(*taskFlag, *refTimeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if *dryRunFlag {
		if err := writeJSON(os.Stdout, payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := execute(ctx, payload, logger)
	if err != nil {
		logger.Error("task execution failed",
			"task", string(payload.Task),
			"error", err,
		)
		os.Exit(1)
	}

	if err := writeJSON(os.Stdout, res); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildPayload validates the flags and constructs the dispatch payload.
func buildPayload(task, refTime string) (scheduler.DispatchPayload, error) {
	payload := scheduler.DispatchPayload{Task: scheduler.TaskType(task)}
	if payload.Task != scheduler.TaskProcessDue {
		return payload, fmt.Errorf("unknown task type %q", task)
	}

	if refTime != "" {
		t, err := time.Parse(time.RFC3339, refTime)
		if err != nil {
			return payload, fmt.Errorf("invalid --reference-time %q: expected RFC3339: %w", refTime, err)
		}
		t = t.UTC()
		payload.ReferenceTime = &t
	}
	return payload, nil
}

// execute wires the dependencies and runs the payload through a JobRunner.
func execute(ctx context.Context, payload scheduler.DispatchPayload, logger *slog.Logger) (*scheduler.JobResult, error) {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	runner := &scheduler.JobRunner{
		Processor:  a.Processor,
		JobLock:    a.JobLocks,
		JobHistory: a.JobHistory,
		Metrics:    a.Metrics,
		WorkerID:   "job-runner-" + uuid.New().String(),
		Logger:     logger,
	}
	return runner.Run(ctx, payload)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
