package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"autopost/internal/types"
)

const (
	// DefaultMaxAttempts bounds generation calls per request.
	DefaultMaxAttempts = 5
	// DefaultHistoryWindow is how many recent items are consulted.
	DefaultHistoryWindow = 30
)

// ErrDuplicate marks a candidate rejected by the deduplicator.
var ErrDuplicate = errors.New("duplicate content")

// TextGenerator produces candidate text for an instruction.
type TextGenerator interface {
	Generate(ctx context.Context, instruction string) (string, error)
}

// HistoryStore reads and appends a user's content history.
type HistoryStore interface {
	FindRecent(ctx context.Context, userID string, limit int) ([]*types.ContentItem, error)
	Append(ctx context.Context, item *types.ContentItem) error
}

// GenerateRequest describes one unique-content request.
type GenerateRequest struct {
	UserID      string
	PromptID    *string
	PromptText  string
	Avoid       []string
	MaxAttempts int
}

// GenerateResult carries the accepted, persisted item and the avoid list as
// it stood when the loop ended.
type GenerateResult struct {
	Item     *types.ContentItem
	Avoid    []string
	Attempts int
}

// GeneratorConfig configures a UniqueGenerator.
type GeneratorConfig struct {
	Generator     TextGenerator
	Deduplicator  *Deduplicator
	History       HistoryStore
	HistoryWindow int
	MaxAttempts   int
	Logger        *slog.Logger
}

// UniqueGenerator asks the generator for text until it produces a candidate
// the deduplicator accepts or the attempt budget runs out.
type UniqueGenerator struct {
	gen         TextGenerator
	dedup       *Deduplicator
	history     HistoryStore
	window      int
	maxAttempts int
	logger      *slog.Logger
}

// NewUniqueGenerator creates a UniqueGenerator.
func NewUniqueGenerator(cfg GeneratorConfig) *UniqueGenerator {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &UniqueGenerator{
		gen:         cfg.Generator,
		dedup:       cfg.Deduplicator,
		history:     cfg.History,
		window:      cfg.HistoryWindow,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
}

// RecentTexts returns the texts of the user's history window, newest first,
// for seeding an avoid list.
func (g *UniqueGenerator) RecentTexts(ctx context.Context, userID string) ([]string, error) {
	items, err := g.history.FindRecent(ctx, userID, g.window)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, item.Text)
	}
	return texts, nil
}

// Generate runs the bounded retry loop. On success exactly one ContentItem
// has been appended to the history. When every attempt is rejected as a
// duplicate it returns upstream_generation_exhausted after exactly
// MaxAttempts generator calls. Backend failures abort the loop at once.
func (g *UniqueGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = g.maxAttempts
	}

	history, err := g.history.FindRecent(ctx, req.UserID, g.window)
	if err != nil {
		return nil, err
	}

	avoid := slices.Clone(req.Avoid)
	var lastRejection error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := g.gen.Generate(ctx, BuildInstruction(req.PromptText, avoid))
		if err != nil {
			return nil, wrapUnlessCoded(err, types.ErrCodeUpstreamGeneration, "content generation failed")
		}

		check, err := g.dedup.Check(ctx, text, history)
		if err != nil {
			return nil, err
		}

		if check.Verdict == Unique {
			item := &types.ContentItem{
				UserID:      req.UserID,
				PromptID:    req.PromptID,
				Text:        text,
				ContentHash: check.Hash,
				Embedding:   check.Embedding,
			}
			if err := g.history.Append(ctx, item); err != nil {
				return nil, err
			}
			g.logger.InfoContext(ctx, "unique content generated",
				"user_id", req.UserID,
				"content_id", item.ID,
				"attempts", attempt,
			)
			return &GenerateResult{Item: item, Avoid: avoid, Attempts: attempt}, nil
		}

		g.logger.InfoContext(ctx, "candidate rejected",
			"user_id", req.UserID,
			"attempt", attempt,
			"verdict", check.Verdict.String(),
			"max_similarity", check.MaxSimilarity,
		)
		lastRejection = fmt.Errorf("attempt %d: %w (%s)", attempt, ErrDuplicate, check.Verdict)
		if !slices.Contains(avoid, text) {
			avoid = append(avoid, text)
		}
	}

	return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamGenerationExhausted,
		"no unique content after all attempts", lastRejection,
		map[string]any{"attempts": maxAttempts})
}

// Preview renders one candidate without dedup, persistence or retries.
func (g *UniqueGenerator) Preview(ctx context.Context, promptText string, avoid []string) (string, error) {
	text, err := g.gen.Generate(ctx, BuildInstruction(promptText, avoid))
	if err != nil {
		return "", wrapUnlessCoded(err, types.ErrCodeUpstreamGeneration, "content generation failed")
	}
	return text, nil
}

func wrapUnlessCoded(err error, code types.ErrorCode, msg string) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(code, msg, err)
}
