package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"autopost/internal/content"
	"autopost/internal/db"
	"autopost/internal/external"
	"autopost/internal/schedule"
	"autopost/internal/types"
)

// Batch defaults.
const (
	DefaultPageSize      = 100
	DefaultRecordTimeout = 90 * time.Second
	DefaultLeaseTTL      = 10 * time.Minute
	DefaultConcurrency   = 1
)

// ProcessorConfig wires a BatchProcessor. Zero numeric fields take the
// package defaults; Events and Sleep are optional.
type ProcessorConfig struct {
	Schedules   ScheduleStore
	Prompts     PromptSource
	Credentials CredentialResolver
	Content     ContentGenerator
	Publisher   PublishingBackend
	Calculator  *schedule.Calculator
	Events      EventPublisher

	PageSize      int
	MaxAttempts   int
	Concurrency   int
	PublishDelay  time.Duration
	RecordTimeout time.Duration
	LeaseTTL      time.Duration

	Sleep  SleepFunc
	Logger *slog.Logger
}

// BatchProcessor runs one pass over every due schedule.
type BatchProcessor struct {
	schedules   ScheduleStore
	prompts     PromptSource
	credentials CredentialResolver
	content     ContentGenerator
	publisher   publisher
	calc        *schedule.Calculator
	events      EventPublisher

	pageSize      int
	maxAttempts   int
	concurrency   int
	recordTimeout time.Duration
	leaseTTL      time.Duration

	logger *slog.Logger
}

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(cfg ProcessorConfig) *BatchProcessor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = content.DefaultMaxAttempts
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PublishDelay < 0 {
		cfg.PublishDelay = 0
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = DefaultRecordTimeout
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.Sleep == nil {
		cfg.Sleep = external.ContextSleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &BatchProcessor{
		schedules:     cfg.Schedules,
		prompts:       cfg.Prompts,
		credentials:   cfg.Credentials,
		content:       cfg.Content,
		publisher:     publisher{backend: cfg.Publisher, delay: cfg.PublishDelay, sleep: cfg.Sleep},
		calc:          cfg.Calculator,
		events:        cfg.Events,
		pageSize:      cfg.PageSize,
		maxAttempts:   cfg.MaxAttempts,
		concurrency:   cfg.Concurrency,
		recordTimeout: cfg.RecordTimeout,
		leaseTTL:      cfg.LeaseTTL,
		logger:        cfg.Logger,
	}
}

type outcomeKind int

const (
	outcomeProcessed outcomeKind = iota
	outcomePaused
	outcomeSkipped
	outcomeFailed
)

type outcome struct {
	kind    outcomeKind
	message string
}

// ProcessDue pages through schedules due at now and processes each one in
// isolation. Per-record failures land in Summary.Errors; only a failure to
// read a page aborts the pass, returning the partial summary with the error.
func (p *BatchProcessor) ProcessDue(ctx context.Context, now time.Time) (*Summary, error) {
	now = now.UTC()
	summary := &Summary{Errors: []RecordError{}}
	var (
		mu     sync.Mutex
		cursor *db.DueCursor
		pages  int
	)
	start := time.Now()

	for {
		page, err := p.schedules.FindDue(ctx, now, cursor, p.pageSize)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to fetch due page",
				"page", pages,
				"error", err,
			)
			return summary, err
		}
		pages++

		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for _, post := range page {
			post := post
			g.Go(func() error {
				out := p.processRecord(ctx, post, now)

				mu.Lock()
				defer mu.Unlock()
				switch out.kind {
				case outcomeProcessed:
					summary.Processed++
				case outcomePaused:
					summary.Paused++
				case outcomeSkipped:
					summary.Skipped++
				case outcomeFailed:
					summary.Errors = append(summary.Errors, RecordError{RecordID: post.ID, Message: out.message})
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(page) < p.pageSize {
			break
		}
		last := page[len(page)-1]
		cursor = &db.DueCursor{NextScheduledAt: last.NextScheduledAt, ID: last.ID}
	}

	p.logger.InfoContext(ctx, "batch pass complete",
		"pages", pages,
		"processed", summary.Processed,
		"paused", summary.Paused,
		"skipped", summary.Skipped,
		"errors", len(summary.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// processRecord claims post and walks it through prompt, credential,
// generation and publishing. It never returns an error; every failure is
// converted to a state transition and an outcome.
func (p *BatchProcessor) processRecord(ctx context.Context, post *types.ScheduledPost, now time.Time) outcome {
	logger := p.logger.With("record_id", post.ID, "user_id", post.UserID)

	// Postgres keeps microseconds; the lease is compared on save.
	lease := now.Add(p.leaseTTL).Truncate(time.Microsecond)
	claimed, err := p.schedules.Claim(ctx, post.ID, now, lease)
	if err != nil {
		logger.ErrorContext(ctx, "failed to claim record", "error", err)
		return outcome{kind: outcomeFailed, message: err.Error()}
	}
	if !claimed {
		logger.InfoContext(ctx, "record claimed elsewhere, skipping")
		return outcome{kind: outcomeSkipped}
	}

	recCtx, cancel := context.WithTimeout(ctx, p.recordTimeout)
	defer cancel()

	prompt, err := p.prompts.GetActivePrompt(recCtx, post.UserID)
	if types.IsCode(err, types.ErrCodeNotFoundPrompt) {
		return p.pause(ctx, logger, post, lease, now, "no active prompt")
	}
	if err != nil {
		return p.fail(ctx, logger, post, lease, now, err)
	}

	token, ok, err := p.credentials.Resolve(recCtx, post.UserID)
	if err != nil {
		return p.fail(ctx, logger, post, lease, now, err)
	}
	if !ok {
		return p.pause(ctx, logger, post, lease, now, "no credential")
	}

	avoid, err := p.content.RecentTexts(recCtx, post.UserID)
	if err != nil {
		return p.fail(ctx, logger, post, lease, now, err)
	}

	res, err := p.content.Generate(recCtx, content.GenerateRequest{
		UserID:      post.UserID,
		PromptID:    &prompt.ID,
		PromptText:  prompt.Text,
		Avoid:       avoid,
		MaxAttempts: p.maxAttempts,
	})
	if err != nil {
		return p.fail(ctx, logger, post, lease, now, err)
	}

	postID, err := p.publisher.publish(recCtx, res.Item.Text, token)
	if err != nil {
		return p.fail(ctx, logger, post, lease, now, err)
	}

	spec, err := schedule.SpecOf(post)
	if err != nil {
		return p.fail(ctx, logger, post, lease, now, err)
	}
	next, err := p.calc.NextOccurrence(spec, now)
	if err != nil {
		return p.fail(ctx, logger, post, lease, now, err)
	}

	posted := now
	post.LastPostedAt = &posted
	post.NextScheduledAt = next
	post.Status = types.StatusActive
	post.UpdatedAt = now
	saved, err := p.schedules.SaveLeased(ctx, post, lease)
	if err != nil {
		// Already published; the record stays leased until the lease expires.
		logger.ErrorContext(ctx, "published but failed to save schedule", "post_id", postID, "error", err)
		return outcome{kind: outcomeFailed, message: err.Error()}
	}
	if !saved {
		logger.WarnContext(ctx, "schedule changed during publish, keeping the new configuration", "post_id", postID)
	}

	logger.InfoContext(ctx, "scheduled post published",
		"post_id", postID,
		"content_id", res.Item.ID,
		"attempts", res.Attempts,
		"next_scheduled_at", next.Format(time.RFC3339),
	)
	p.emit(ctx, types.PostEvent{
		Type:      types.EventPostPublished,
		RecordID:  post.ID,
		UserID:    post.UserID,
		ContentID: res.Item.ID,
		PostID:    postID,
	}, now)
	return outcome{kind: outcomeProcessed}
}

func (p *BatchProcessor) pause(ctx context.Context, logger *slog.Logger, post *types.ScheduledPost, lease, now time.Time, reason string) outcome {
	post.Status = types.StatusPaused
	post.UpdatedAt = now
	saved, err := p.schedules.SaveLeased(ctx, post, lease)
	if err != nil {
		logger.ErrorContext(ctx, "failed to pause record", "reason", reason, "error", err)
		return outcome{kind: outcomeFailed, message: err.Error()}
	}
	if !saved {
		logger.InfoContext(ctx, "schedule changed during pass, pause dropped", "reason", reason)
		return outcome{kind: outcomeSkipped}
	}
	logger.InfoContext(ctx, "record paused", "reason", reason)
	p.emit(ctx, types.PostEvent{
		Type:     types.EventSchedulePaused,
		RecordID: post.ID,
		UserID:   post.UserID,
		Message:  reason,
	}, now)
	return outcome{kind: outcomePaused}
}

func (p *BatchProcessor) fail(ctx context.Context, logger *slog.Logger, post *types.ScheduledPost, lease, now time.Time, cause error) outcome {
	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) && ctx.Err() == nil {
		msg = fmt.Sprintf("record timed out after %s: %s", p.recordTimeout, msg)
	}

	post.Status = types.StatusError
	post.UpdatedAt = now
	saved, err := p.schedules.SaveLeased(ctx, post, lease)
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "failed to persist error status", "cause", cause, "error", err)
		msg = fmt.Sprintf("%s (status not saved: %v)", msg, err)
	case !saved:
		msg += " (schedule changed during pass, status not saved)"
	}

	logger.WarnContext(ctx, "record failed", "error", cause)
	p.emit(ctx, types.PostEvent{
		Type:     types.EventScheduleErrored,
		RecordID: post.ID,
		UserID:   post.UserID,
		Message:  msg,
	}, now)
	return outcome{kind: outcomeFailed, message: msg}
}

func (p *BatchProcessor) emit(ctx context.Context, event types.PostEvent, now time.Time) {
	if p.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = now
	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "failed to publish post event",
			"event_type", event.Type,
			"record_id", event.RecordID,
			"error", err,
		)
	}
}
