package scheduler

import (
	"context"
	"log/slog"
	"time"

	"autopost/internal/content"
	"autopost/internal/external"
	"autopost/internal/schedule"
	"autopost/internal/types"
)

// AccountDeleter removes a user and everything they own.
type AccountDeleter interface {
	Delete(ctx context.Context, userID string) error
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Schedules   ScheduleStore
	Prompts     PromptSource
	Credentials CredentialResolver
	Content     ContentGenerator
	Publisher   PublishingBackend
	Calculator  *schedule.Calculator
	Accounts    AccountDeleter

	MaxAttempts  int
	PublishDelay time.Duration

	Sleep  SleepFunc
	Now    func() time.Time
	Logger *slog.Logger
}

// Service implements the user-facing schedule operations.
type Service struct {
	schedules   ScheduleStore
	prompts     PromptSource
	credentials CredentialResolver
	content     ContentGenerator
	publisher   publisher
	calc        *schedule.Calculator
	accounts    AccountDeleter
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = content.DefaultMaxAttempts
	}
	if cfg.Sleep == nil {
		cfg.Sleep = external.ContextSleep
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		schedules:   cfg.Schedules,
		prompts:     cfg.Prompts,
		credentials: cfg.Credentials,
		content:     cfg.Content,
		publisher:   publisher{backend: cfg.Publisher, delay: cfg.PublishDelay, sleep: cfg.Sleep},
		calc:        cfg.Calculator,
		accounts:    cfg.Accounts,
		maxAttempts: cfg.MaxAttempts,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// Configure validates in, computes the first occurrence from now and stores
// it as the user's only schedule, active and unleased. Validation failures
// leave any existing schedule untouched.
func (s *Service) Configure(ctx context.Context, userID string, in schedule.Input) (*types.ScheduledPost, error) {
	spec, err := s.calc.Clock().Validate(in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next, err := s.calc.NextOccurrence(spec, now)
	if err != nil {
		return nil, err
	}

	post := &types.ScheduledPost{
		UserID:          userID,
		ScheduleType:    spec.Type,
		TimeOfDay:       schedule.FormatTimeOfDay(spec.TimeOfDay),
		TimeZoneID:      spec.TimeZoneID,
		NextScheduledAt: next,
		Status:          types.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if spec.Type == types.ScheduleCustom {
		value, unit := spec.IntervalValue, spec.IntervalUnit
		post.IntervalValue = &value
		post.IntervalUnit = &unit
	}

	saved, err := s.schedules.Upsert(ctx, post)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "schedule configured",
		"user_id", userID,
		"record_id", saved.ID,
		"schedule_type", string(saved.ScheduleType),
		"next_scheduled_at", saved.NextScheduledAt.Format(time.RFC3339),
	)
	return saved, nil
}

// Get returns the user's schedule or not_found_schedule.
func (s *Service) Get(ctx context.Context, userID string) (*types.ScheduledPost, error) {
	return s.schedules.GetByUser(ctx, userID)
}

// Clear removes the user's schedule. Clearing twice is not an error.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.schedules.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "schedule cleared", "user_id", userID)
	return nil
}

// Reactivate re-arms the record with the given id. It fails with
// conflict_schedule_invalid_state, without mutating anything, unless the
// record is in error.
func (s *Service) Reactivate(ctx context.Context, recordID string) (*types.ScheduledPost, error) {
	post, err := s.schedules.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return s.reactivate(ctx, post)
}

// ReactivateForUser is Reactivate addressed by the owning user.
func (s *Service) ReactivateForUser(ctx context.Context, userID string) (*types.ScheduledPost, error) {
	post, err := s.schedules.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.reactivate(ctx, post)
}

func (s *Service) reactivate(ctx context.Context, post *types.ScheduledPost) (*types.ScheduledPost, error) {
	if post.Status != types.StatusError {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictScheduleState,
			"only schedules in error can be reactivated", nil,
			map[string]any{"status": string(post.Status)})
	}

	spec, err := schedule.SpecOf(post)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	next, err := s.calc.NextOccurrence(spec, now)
	if err != nil {
		return nil, err
	}

	post.NextScheduledAt = next
	post.Status = types.StatusActive
	post.UpdatedAt = now
	if err := s.schedules.Save(ctx, post); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "schedule reactivated",
		"record_id", post.ID,
		"user_id", post.UserID,
		"next_scheduled_at", next.Format(time.RFC3339),
	)
	return post, nil
}

// PublishNow generates and publishes one post immediately using the user's
// active prompt. The schedule record is not touched.
func (s *Service) PublishNow(ctx context.Context, userID string) (*types.PublishResult, error) {
	prompt, err := s.prompts.GetActivePrompt(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, ok, err := s.credentials.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundCred, "no publishing credential on file", nil)
	}

	res, err := s.content.Generate(ctx, content.GenerateRequest{
		UserID:      userID,
		PromptID:    &prompt.ID,
		PromptText:  prompt.Text,
		MaxAttempts: s.maxAttempts,
	})
	if err != nil {
		return nil, err
	}

	postID, err := s.publisher.publish(ctx, res.Item.Text, token)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "post published on demand",
		"user_id", userID,
		"content_id", res.Item.ID,
		"post_id", postID,
	)
	return &types.PublishResult{ContentID: res.Item.ID, PostID: postID, Text: res.Item.Text}, nil
}

// Preview renders one candidate for promptText, or for the user's active
// prompt when promptText is empty. Nothing is stored or published.
func (s *Service) Preview(ctx context.Context, userID, promptText string) (string, error) {
	if promptText == "" {
		prompt, err := s.prompts.GetActivePrompt(ctx, userID)
		switch {
		case err == nil:
			promptText = prompt.Text
		case !types.IsCode(err, types.ErrCodeNotFoundPrompt):
			return "", err
		}
	}

	avoid, err := s.content.RecentTexts(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.content.Preview(ctx, promptText, avoid)
}

// DeleteAccount removes the user with their schedule, history, prompts and
// credential.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.accounts.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account deleted", "user_id", userID)
	return nil
}
