package types

import "time"

// CloudWatch metric names and dimensions emitted by the batch dispatcher.
const (
	MetricNamespace = "AutoPost"

	MetricBatchProcessed = "BatchProcessed"
	MetricBatchPaused    = "BatchPaused"
	MetricBatchSkipped   = "BatchSkipped"
	MetricBatchErrors    = "BatchErrors"
	MetricBatchDuration  = "BatchDuration"

	DimTask = "Task"
)

// Event types published to the post events queue.
const (
	EventPostPublished   = "post.published"
	EventScheduleErrored = "schedule.errored"
	EventSchedulePaused  = "schedule.paused"
)

// PostEvent is the body of a message on the post events queue.
type PostEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RecordID   string    `json:"record_id"`
	UserID     string    `json:"user_id"`
	ContentID  string    `json:"content_id,omitempty"`
	PostID     string    `json:"post_id,omitempty"`
	Message    string    `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
