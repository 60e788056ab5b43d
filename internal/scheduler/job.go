package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"autopost/internal/metrics"
)

// JobLockTTL covers one dispatcher invocation with margin.
const JobLockTTL = 15 * time.Minute

// JobLocker abstracts the distributed lock.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID string, workerID string) error
}

const lockReleaseTimeout = 5 * time.Second

// JobHistorian records job runs for operational visibility.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// DueRunner runs one batch pass.
type DueRunner interface {
	ProcessDue(ctx context.Context, now time.Time) (*Summary, error)
}

// BatchMetrics receives the outcome of each pass.
type BatchMetrics interface {
	RecordBatch(ctx context.Context, task string, res metrics.BatchResult)
}

// JobRunner executes dispatch payloads under a per-minute job lock so that
// overlapping deliveries of the same EventBridge tick run once.
type JobRunner struct {
	Processor  DueRunner
	JobLock    JobLocker
	JobHistory JobHistorian
	Metrics    BatchMetrics
	WorkerID   string
	Logger     *slog.Logger
	Now        func() time.Time
}

// JobResult describes one dispatch. Summary is nil when the lock was held
// elsewhere.
type JobResult struct {
	LockID  string   `json:"lockId"`
	Skipped bool     `json:"skipped"`
	Summary *Summary `json:"summary,omitempty"`
}

// Run validates payload, takes the lock for the reference minute, records job
// history and runs the pass. Record-level failures are reported in the
// summary; only pass-level failures return an error, and they release the
// lock. A successful pass keeps it until JobLockTTL.
func (j *JobRunner) Run(ctx context.Context, payload DispatchPayload) (*JobResult, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now().UTC()
	}
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	switch payload.Task {
	case "":
		return nil, fmt.Errorf("empty task type in dispatch payload")
	case TaskProcessDue:
	default:
		return nil, fmt.Errorf("unknown task type: %q", payload.Task)
	}

	task := string(payload.Task)
	lockID := fmt.Sprintf("%s:%s", task, now.Truncate(time.Minute).Format("2006-01-02T15:04"))
	acquired, err := j.JobLock.Acquire(ctx, lockID, j.WorkerID, JobLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock not acquired, another worker is processing",
			"lock_id", lockID,
		)
		return &JobResult{LockID: lockID, Skipped: true}, nil
	}

	jobID, err := j.JobHistory.Start(ctx, task)
	if err != nil {
		logger.WarnContext(ctx, "failed to record job start",
			"task", task,
			"error", err,
		)
		jobID = 0
	}

	start := time.Now()
	summary, execErr := j.Processor.ProcessDue(ctx, now)

	if summary != nil && j.Metrics != nil {
		j.Metrics.RecordBatch(ctx, task, metrics.BatchResult{
			Processed: summary.Processed,
			Paused:    summary.Paused,
			Skipped:   summary.Skipped,
			Errors:    len(summary.Errors),
			Duration:  time.Since(start),
		})
	}

	status, items := "success", 0
	if summary != nil {
		items = summary.Processed
	}
	if execErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if finishErr := j.JobHistory.Finish(ctx, jobID, status, items, execErr); finishErr != nil {
			logger.ErrorContext(ctx, "failed to finish job history",
				"job_id", jobID,
				"task", task,
				"error", finishErr,
			)
		}
	}

	if execErr != nil {
		// Free the minute so a retried delivery runs instead of skipping.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if relErr := j.JobLock.Release(releaseCtx, lockID, j.WorkerID); relErr != nil {
			logger.ErrorContext(ctx, "failed to release job lock",
				"lock_id", lockID,
				"error", relErr,
			)
		}
		return nil, fmt.Errorf("task %s failed: %w", task, execErr)
	}
	return &JobResult{LockID: lockID, Summary: summary}, nil
}
