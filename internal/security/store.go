package security

import (
	"context"
	"log/slog"
	"time"

	"autopost/internal/types"
)

// CredentialReader loads a user's sealed credential.
type CredentialReader interface {
	GetByUser(ctx context.Context, userID string) (*types.Credential, error)
}

// CredentialStore resolves a user's plaintext access token.
type CredentialStore struct {
	repo   CredentialReader
	cipher *CredentialCipher
	now    func() time.Time
	logger *slog.Logger
}

// NewCredentialStore creates a CredentialStore.
func NewCredentialStore(repo CredentialReader, c *CredentialCipher, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{repo: repo, cipher: c, now: time.Now, logger: logger}
}

// Resolve returns the user's access token. A missing or expired credential
// yields ok == false with a nil error; decryption and storage failures are
// errors.
func (s *CredentialStore) Resolve(ctx context.Context, userID string) (token string, ok bool, err error) {
	cred, err := s.repo.GetByUser(ctx, userID)
	if types.IsCode(err, types.ErrCodeNotFoundCred) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if cred.ExpiresAt != nil && !cred.ExpiresAt.After(s.now()) {
		s.logger.WarnContext(ctx, "credential expired", "user_id", userID, "expires_at", cred.ExpiresAt.Format(time.RFC3339))
		return "", false, nil
	}

	token, err = s.cipher.Decrypt(cred.Token)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}
