package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopost/internal/types"
)

var batchNow = time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC)

type processorDeps struct {
	store     *memStore
	prompts   *fakePrompts
	creds     *fakeCredentials
	content   *fakeContent
	publisher *fakePublisher
	events    *recordingEvents
	sleeper   *sleepRecorder
}

func newProcessorDeps(posts ...*types.ScheduledPost) *processorDeps {
	return &processorDeps{
		store:     newMemStore(posts...),
		prompts:   &fakePrompts{missing: map[string]bool{}},
		creds:     &fakeCredentials{missing: map[string]bool{}},
		content:   &fakeContent{fail: map[string]error{}},
		publisher: &fakePublisher{failUsers: map[string]bool{}},
		events:    &recordingEvents{},
		sleeper:   &sleepRecorder{},
	}
}

func (d *processorDeps) processor(concurrency int) *BatchProcessor {
	return NewBatchProcessor(ProcessorConfig{
		Schedules:   d.store,
		Prompts:     d.prompts,
		Credentials: d.creds,
		Content:     d.content,
		Publisher:   d.publisher,
		Calculator:  newCalculator(),
		Events:      d.events,
		Concurrency: concurrency,
		Sleep:       d.sleeper.sleep,
	})
}

func TestProcessDue_SuccessAdvancesSchedule(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow.Add(-time.Minute)))
	d.content.recent = []string{"yesterday's post"}

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, summary.Errors)

	got := d.store.get("a")
	assert.Equal(t, types.StatusActive, got.Status)
	require.NotNil(t, got.LastPostedAt)
	assert.Equal(t, batchNow, *got.LastPostedAt)
	// 09:00 New York on Mar 9 2025 is EDT.
	assert.Equal(t, time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC), got.NextScheduledAt)
	assert.Nil(t, got.LeaseExpiresAt)

	require.Len(t, d.content.requests, 1)
	assert.Equal(t, []string{"yesterday's post"}, d.content.requests[0].Avoid)
	assert.Equal(t, "inspire user-a", d.content.requests[0].PromptText)
	assert.Equal(t, 5, d.content.requests[0].MaxAttempts)

	assert.Equal(t, []time.Duration{DefaultPublishDelay}, d.sleeper.waits)
	assert.Equal(t, []string{"container-1"}, d.publisher.finalized)
	assert.Equal(t, 1, d.events.count(types.EventPostPublished))
}

func TestProcessDue_PageOfHundredWithMissingCredential(t *testing.T) {
	posts := make([]*types.ScheduledPost, 0, 100)
	for i := 1; i <= 100; i++ {
		posts = append(posts, duePost(fmt.Sprintf("r%03d", i), batchNow.Add(-time.Duration(i)*time.Second)))
	}
	d := newProcessorDeps(posts...)
	d.creds.missing["user-r042"] = true

	summary, err := d.processor(4).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	assert.Equal(t, 99, summary.Processed)
	assert.Equal(t, 1, summary.Paused)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, types.StatusPaused, d.store.get("r042").Status)
	assert.Equal(t, 2, d.store.findCalls, "a full page triggers one more fetch")
	assert.Equal(t, 1, d.events.count(types.EventSchedulePaused))
}

func TestProcessDue_FailuresAreIsolated(t *testing.T) {
	d := newProcessorDeps(
		duePost("gen", batchNow.Add(-3*time.Minute)),
		duePost("pub", batchNow.Add(-2*time.Minute)),
		duePost("ok", batchNow.Add(-1*time.Minute)),
		duePost("noprompt", batchNow.Add(-1*time.Minute)),
	)
	d.content.fail["user-gen"] = types.NewAppError(types.ErrCodeUpstreamGenerationExhausted, "no unique content after all attempts", nil)
	d.publisher.failUsers["user-pub"] = true
	d.prompts.missing["user-noprompt"] = true

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Paused)
	require.Len(t, summary.Errors, 2)

	ids := []string{summary.Errors[0].RecordID, summary.Errors[1].RecordID}
	assert.ElementsMatch(t, []string{"gen", "pub"}, ids)
	for _, e := range summary.Errors {
		assert.NotEmpty(t, e.Message)
	}

	assert.Equal(t, types.StatusError, d.store.get("gen").Status)
	assert.Equal(t, types.StatusError, d.store.get("pub").Status)
	assert.Equal(t, types.StatusActive, d.store.get("ok").Status)
	assert.Equal(t, types.StatusPaused, d.store.get("noprompt").Status)
	assert.Equal(t, batchNow.Add(-2*time.Minute), d.store.get("pub").NextScheduledAt, "failed records keep their due time")
	assert.Equal(t, 2, d.events.count(types.EventScheduleErrored))
}

func TestProcessDue_UnclaimedRecordIsSkipped(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow.Add(-time.Minute)), duePost("b", batchNow))
	d.store.claimDeny["a"] = true

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, summary.Errors)
	require.Len(t, d.content.requests, 1)
	assert.Equal(t, "user-b", d.content.requests[0].UserID)
}

func TestProcessDue_NotYetDueUntouched(t *testing.T) {
	future := duePost("later", batchNow.Add(time.Second))
	paused := duePost("paused", batchNow.Add(-time.Hour))
	paused.Status = types.StatusPaused
	d := newProcessorDeps(future, paused)

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Empty(t, d.content.requests)
	assert.NotNil(t, summary.Errors, "errors serializes as an empty list")
}

func TestProcessDue_PageReadFailureAborts(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow))
	d.store.findErr = types.NewAppError(types.ErrCodeInternalDB, "connection refused", nil)

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	require.NotNil(t, summary)
	assert.Zero(t, summary.Processed)
}

func TestProcessDue_CredentialLookupErrorIsFailure(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow))
	d.creds.err = errors.New("kms unavailable")

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0].Message, "kms unavailable")
	assert.Equal(t, types.StatusError, d.store.get("a").Status)
}

func TestProcessDue_SaveFailureReported(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow))
	d.store.saveErr = types.NewAppError(types.ErrCodeInternalDB, "write failed", nil)

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "a", summary.Errors[0].RecordID)
}

func TestProcessDue_ReconfigureDuringPassWins(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow.Add(-time.Minute)))
	reconfigured := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	d.publisher.beforeFinalize = func() {
		cfg := duePost("a", reconfigured)
		cfg.TimeOfDay = "18:00"
		_, err := d.store.Upsert(context.Background(), cfg)
		require.NoError(t, err)
	}

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	got := d.store.get("a")
	assert.Equal(t, "18:00", got.TimeOfDay)
	assert.Equal(t, reconfigured, got.NextScheduledAt)
	assert.Nil(t, got.LastPostedAt)
}

func TestProcessDue_FailureAfterScheduleClearedIsNotSaved(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow))
	d.content.fail["user-a"] = types.NewAppError(types.ErrCodeUpstreamGeneration, "gemini down", nil)
	d.prompts.beforeLookup = func() {
		require.NoError(t, d.store.DeleteByUser(context.Background(), "user-a"))
	}

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0].Message, "status not saved")
	assert.Nil(t, d.store.get("a"))
}

func TestProcessDue_EventFailureDoesNotChangeOutcome(t *testing.T) {
	d := newProcessorDeps(duePost("a", batchNow))
	d.events.err = errors.New("sqs throttled")

	summary, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, summary.Errors)
}

func TestProcessDue_CustomHoursSchedule(t *testing.T) {
	post := duePost("h", batchNow.Add(-time.Minute))
	post.ScheduleType = types.ScheduleCustom
	three := 3
	unit := types.IntervalHours
	post.IntervalValue = &three
	post.IntervalUnit = &unit
	post.TimeZoneID = "UTC"
	d := newProcessorDeps(post)

	_, err := d.processor(1).ProcessDue(context.Background(), batchNow)
	require.NoError(t, err)
	// Stepping starts at 09:00 on the reference day: 12:00, then 15:00.
	assert.Equal(t, time.Date(2025, 3, 8, 15, 0, 0, 0, time.UTC), d.store.get("h").NextScheduledAt)
}
