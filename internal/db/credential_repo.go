package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"autopost/internal/types"
)

// CredentialRepository provides data access for encrypted publishing
// credentials.
type CredentialRepository struct {
	db DBTX
}

// NewCredentialRepository creates a CredentialRepository.
func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetByUser returns the user's credential, or a not_found_credential AppError.
func (r *CredentialRepository) GetByUser(ctx context.Context, userID string) (*types.Credential, error) {
	var c types.Credential
	err := r.db.QueryRow(ctx,
		`SELECT user_id, token_value, token_iv, token_tag, token_hash, expires_at, updated_at
		 FROM credentials
		 WHERE user_id = $1`,
		userID,
	).Scan(&c.UserID, &c.Token.Value, &c.Token.IV, &c.Token.Tag, &c.TokenHash, &c.ExpiresAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundCred, "credential not found", nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load credential", err)
	}
	return &c, nil
}

// UserIDByTokenHash resolves the owner of an access token from its SHA-256
// hash. Expired credentials do not match.
func (r *CredentialRepository) UserIDByTokenHash(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx,
		`SELECT user_id
		 FROM credentials
		 WHERE token_hash = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		tokenHash,
	).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.NewAppError(types.ErrCodeAuthTokenInvalid, "unknown access token", nil)
	}
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to resolve access token", err)
	}
	return userID, nil
}
