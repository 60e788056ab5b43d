// Package content generates post text that does not repeat a user's recent
// history, either verbatim or in meaning.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"strings"

	"autopost/internal/types"
)

// DefaultSimilarityThreshold is the cosine similarity above which a
// candidate counts as a near duplicate.
const DefaultSimilarityThreshold = 0.85

// Verdict is the outcome of a deduplication check.
type Verdict int

const (
	Unique Verdict = iota
	ExactDuplicate
	NearDuplicate
)

func (v Verdict) String() string {
	switch v {
	case Unique:
		return "unique"
	case ExactDuplicate:
		return "exact_duplicate"
	case NearDuplicate:
		return "near_duplicate"
	}
	return "unknown"
}

// Embedder turns text into a semantic vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Check is the result of Deduplicator.Check. Embedding is nil when the
// candidate was rejected by hash alone.
type Check struct {
	Verdict       Verdict
	Hash          string
	Embedding     []float32
	MaxSimilarity float64
}

// Normalize trims, collapses internal whitespace and lowercases text so that
// trivially different renderings hash the same.
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Hash returns the hex SHA-256 of the normalized text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors of
// different length are compared over their common prefix; a zero vector has
// similarity 0 with everything.
func CosineSimilarity(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DeduplicatorConfig configures a Deduplicator.
type DeduplicatorConfig struct {
	Embedder  Embedder
	Threshold float64
	Logger    *slog.Logger
}

// Deduplicator classifies candidate text against a user's history window.
type Deduplicator struct {
	embedder  Embedder
	threshold float64
	logger    *slog.Logger
}

// NewDeduplicator creates a Deduplicator. A zero threshold selects
// DefaultSimilarityThreshold.
func NewDeduplicator(cfg DeduplicatorConfig) *Deduplicator {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSimilarityThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Deduplicator{
		embedder:  cfg.Embedder,
		threshold: cfg.Threshold,
		logger:    cfg.Logger,
	}
}

// Check classifies text against history. An exact hash match short-circuits
// before the embedding backend is called. History items without an embedding
// only take part in the exact check.
func (d *Deduplicator) Check(ctx context.Context, text string, history []*types.ContentItem) (Check, error) {
	res := Check{Hash: Hash(text)}

	for _, item := range history {
		if item.ContentHash == res.Hash {
			res.Verdict = ExactDuplicate
			return res, nil
		}
	}

	vec, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return res, types.NewAppError(types.ErrCodeUpstreamEmbedding, "failed to embed candidate", err)
	}
	res.Embedding = vec

	for _, item := range history {
		if len(item.Embedding) == 0 {
			continue
		}
		if sim := CosineSimilarity(vec, item.Embedding); sim > res.MaxSimilarity {
			res.MaxSimilarity = sim
		}
	}
	if res.MaxSimilarity > d.threshold {
		res.Verdict = NearDuplicate
	}

	d.logger.DebugContext(ctx, "dedup check",
		"verdict", res.Verdict.String(),
		"max_similarity", res.MaxSimilarity,
		"history_size", len(history),
	)
	return res, nil
}
