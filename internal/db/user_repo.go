package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"autopost/internal/types"
)

// UserRepository provides data access for users and their prompts.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetActivePrompt returns the user's active prompt, or a not_found_prompt
// AppError when none is active.
func (r *UserRepository) GetActivePrompt(ctx context.Context, userID string) (*types.Prompt, error) {
	var p types.Prompt
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, text, is_active, created_at
		 FROM prompts
		 WHERE user_id = $1 AND is_active
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&p.ID, &p.UserID, &p.Text, &p.IsActive, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundPrompt, "user has no active prompt", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load active prompt", err)
	}
	return &p, nil
}

// accountTables lists the per-user tables in dependency order.
var accountTables = []struct {
	table  string
	column string
}{
	{"scheduled_posts", "user_id"},
	{"content_items", "user_id"},
	{"prompts", "user_id"},
	{"credentials", "user_id"},
	{"users", "id"},
}

// AccountRepository removes all data owned by a user.
type AccountRepository struct {
	pool TxBeginner
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(pool TxBeginner) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Delete removes the user and everything they own in one transaction.
// Returns not_found_user when no user row was deleted.
func (r *AccountRepository) Delete(ctx context.Context, userID string) error {
	var userDeleted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, t := range accountTables {
			tag, err := tx.Exec(ctx, `DELETE FROM `+t.table+` WHERE `+t.column+` = $1`, userID)
			if err != nil {
				return err
			}
			if t.table == "users" {
				userDeleted = tag.RowsAffected() > 0
			}
		}
		if !userDeleted {
			// Roll back; nothing should be removed for an unknown user.
			return errUserMissing
		}
		return nil
	})
	if errors.Is(err, errUserMissing) {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete account", err)
	}
	return nil
}

var errUserMissing = errors.New("user missing")
