package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"autopost/internal/core"
	"autopost/internal/metrics"
	"autopost/internal/scheduler"
	"autopost/internal/types"
)

// BatchRunner runs one due-schedule pass.
type BatchRunner interface {
	ProcessDue(ctx context.Context, now time.Time) (*scheduler.Summary, error)
}

// BatchMetrics records the outcome of a pass.
type BatchMetrics interface {
	RecordBatch(ctx context.Context, task string, res metrics.BatchResult)
}

// TriggerHandler exposes the batch pass to an external scheduler.
type TriggerHandler struct {
	runner  BatchRunner
	metrics BatchMetrics
	now     func() time.Time
	logger  *slog.Logger
}

// NewTriggerHandler creates a TriggerHandler. metrics may be nil.
func NewTriggerHandler(runner BatchRunner, m BatchMetrics, l *slog.Logger) *TriggerHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TriggerHandler{runner: runner, metrics: m, now: time.Now, logger: l}
}

// RegisterRoutes mounts the trigger endpoint. The caller is responsible for
// placing it behind the trigger secret.
func (h *TriggerHandler) RegisterRoutes(r chi.Router) {
	r.Post("/trigger/process-due", h.ProcessDue)
}

// ProcessDue handles POST /v1/trigger/process-due.
//
// Per-record failures are reported in the body with 200 OK. Only a failure
// to read the due set itself is an error response; its details carry the
// counts reached before the failure.
func (h *TriggerHandler) ProcessDue(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	summary, err := h.runner.ProcessDue(r.Context(), start)
	h.record(r.Context(), summary, h.now().Sub(start))

	if err != nil {
		h.logger.ErrorContext(r.Context(), "batch pass aborted", "error", err)
		details := map[string]any{}
		if summary != nil {
			details["processedCount"] = summary.Processed
			details["pausedCount"] = summary.Paused
			details["errorCount"] = len(summary.Errors)
		}
		var appErr *types.AppError
		if !errors.As(err, &appErr) {
			appErr = types.NewAppError(types.ErrCodeInternalUnexpected, "batch pass aborted", err)
		}
		core.Error(w, r, appErr.WithDetails(details))
		return
	}

	core.JSON(w, r, http.StatusOK, summary)
}

func (h *TriggerHandler) record(ctx context.Context, summary *scheduler.Summary, elapsed time.Duration) {
	if h.metrics == nil || summary == nil {
		return
	}
	h.metrics.RecordBatch(ctx, string(scheduler.TaskProcessDue), metrics.BatchResult{
		Processed: summary.Processed,
		Paused:    summary.Paused,
		Skipped:   summary.Skipped,
		Errors:    len(summary.Errors),
		Duration:  elapsed,
	})
}
