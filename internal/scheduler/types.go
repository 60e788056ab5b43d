// Package scheduler drives recurring auto-posting: the due-schedule batch
// pass, schedule configuration and on-demand publishing.
package scheduler

import (
	"context"
	"time"

	"autopost/internal/content"
	"autopost/internal/db"
	"autopost/internal/types"
)

// TaskType identifies the work an EventBridge rule asks the dispatcher for.
type TaskType string

const (
	TaskProcessDue TaskType = "process_due"
)

// DispatchPayload is the EventBridge input of the dispatcher Lambda.
//
//	{
//	  "task": "process_due",
//	  "reference_time": "2026-02-06T03:15:00Z"  // optional
//	}
type DispatchPayload struct {
	Task          TaskType   `json:"task"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// RecordError describes one record that failed during a batch pass.
type RecordError struct {
	RecordID string `json:"recordId"`
	Message  string `json:"message"`
}

// Summary reports the outcome of one batch pass. A record appears in exactly
// one of Processed, Paused, Skipped or Errors.
type Summary struct {
	Processed int           `json:"processedCount"`
	Paused    int           `json:"pausedCount"`
	Skipped   int           `json:"skippedCount"`
	Errors    []RecordError `json:"errors"`
}

// ScheduleStore is the persistence the batch pass and service need.
type ScheduleStore interface {
	FindDue(ctx context.Context, now time.Time, cursor *db.DueCursor, limit int) ([]*types.ScheduledPost, error)
	Claim(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error)
	Save(ctx context.Context, post *types.ScheduledPost) error
	SaveLeased(ctx context.Context, post *types.ScheduledPost, lease time.Time) (bool, error)
	Upsert(ctx context.Context, post *types.ScheduledPost) (*types.ScheduledPost, error)
	GetByUser(ctx context.Context, userID string) (*types.ScheduledPost, error)
	GetByID(ctx context.Context, id string) (*types.ScheduledPost, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// PromptSource returns a user's active prompt, or not_found_prompt.
type PromptSource interface {
	GetActivePrompt(ctx context.Context, userID string) (*types.Prompt, error)
}

// CredentialResolver returns a user's access token; ok is false when the
// user has no usable credential.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID string) (token string, ok bool, err error)
}

// ContentGenerator produces unique, persisted post text.
type ContentGenerator interface {
	Generate(ctx context.Context, req content.GenerateRequest) (*content.GenerateResult, error)
	RecentTexts(ctx context.Context, userID string) ([]string, error)
	Preview(ctx context.Context, promptText string, avoid []string) (string, error)
}

// PublishingBackend posts text in two steps: container, then finalize.
type PublishingBackend interface {
	CreateContainer(ctx context.Context, text string, accessToken string) (string, error)
	Finalize(ctx context.Context, containerID string, accessToken string) (string, error)
}

// EventPublisher fans out lifecycle events. Failures are logged, never
// propagated to the record outcome.
type EventPublisher interface {
	Publish(ctx context.Context, event types.PostEvent) error
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error
