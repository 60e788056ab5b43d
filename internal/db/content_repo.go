package db

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"autopost/internal/types"
)

// ContentRepository provides data access for content_items, the append-only
// generation history used for deduplication.
type ContentRepository struct {
	db DBTX
}

// NewContentRepository creates a ContentRepository.
func NewContentRepository(db DBTX) *ContentRepository {
	return &ContentRepository{db: db}
}

// FindRecent returns the user's most recent items, newest first.
func (r *ContentRepository) FindRecent(ctx context.Context, userID string, limit int) ([]*types.ContentItem, error) {
	query, args, err := psql.Select("id", "user_id", "prompt_id", "text", "content_hash", "embedding", "created_at").
		From("content_items").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build recent content query", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query recent content", err)
	}
	defer rows.Close()

	var items []*types.ContentItem
	for rows.Next() {
		var (
			item types.ContentItem
			blob []byte
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.PromptID, &item.Text, &item.ContentHash, &blob, &item.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan content item", err)
		}
		if item.Embedding, err = DecodeEmbedding(blob); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode content embedding", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating recent content", err)
	}
	return items, nil
}

// Append inserts item, assigning an id and creation time when unset.
func (r *ContentRepository) Append(ctx context.Context, item *types.ContentItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	query, args, err := psql.Insert("content_items").
		Columns("id", "user_id", "prompt_id", "text", "content_hash", "embedding", "created_at").
		Values(item.ID, item.UserID, item.PromptID, item.Text, item.ContentHash, EncodeEmbedding(item.Embedding), item.CreatedAt).
		ToSql()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build content insert", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to append content item", err)
	}
	return nil
}
