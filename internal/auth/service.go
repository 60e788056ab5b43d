// Package auth resolves bearer credentials on the HTTP surface: the shared
// trigger secret guarding the batch endpoint and the per-user access tokens
// guarding schedule operations.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"autopost/internal/security"
	"autopost/internal/types"
)

// SecretHasher abstracts bcrypt operations for testability.
type SecretHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
}

// bcryptHasher is the production implementation of SecretHasher.
type bcryptHasher struct{}

func (bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// TriggerVerifier checks the bearer secret presented to the process-due
// endpoint against a bcrypt hash held in configuration.
type TriggerVerifier struct {
	hash   types.SecretString
	hasher SecretHasher
}

// NewTriggerVerifier creates a TriggerVerifier for the given bcrypt hash.
func NewTriggerVerifier(hash types.SecretString) *TriggerVerifier {
	return &TriggerVerifier{hash: hash, hasher: bcryptHasher{}}
}

// ResolveToken returns the trigger actor when secret matches the configured
// hash. An empty hash rejects every secret.
func (v *TriggerVerifier) ResolveToken(_ context.Context, secret string) (*types.Actor, error) {
	if v.hash.IsZero() || secret == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid trigger secret", nil)
	}
	if err := v.hasher.CompareHashAndPassword(v.hash.Unmask(), secret); err != nil {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid trigger secret", err)
	}
	return &types.Actor{ID: "trigger", Type: types.ActorTypeTrigger}, nil
}

// TokenLookup maps a hashed access token to its owning user.
type TokenLookup interface {
	UserIDByTokenHash(ctx context.Context, tokenHash string) (string, error)
}

// TokenAuthenticator resolves a user's publishing access token, presented as
// a bearer token, to a user actor. Only the sha256 hash of the token is
// compared against storage.
type TokenAuthenticator struct {
	lookup TokenLookup
	logger *slog.Logger
}

// NewTokenAuthenticator creates a TokenAuthenticator.
func NewTokenAuthenticator(lookup TokenLookup, logger *slog.Logger) *TokenAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAuthenticator{lookup: lookup, logger: logger}
}

// ResolveToken returns the user actor owning token.
func (a *TokenAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	userID, err := a.lookup.UserIDByTokenHash(ctx, security.TokenHash(token))
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthTokenInvalid {
			return nil, appErr
		}
		a.logger.ErrorContext(ctx, "token lookup failed", "error", err)
		return nil, err
	}
	return &types.Actor{ID: userID, Type: types.ActorTypeUser}, nil
}
