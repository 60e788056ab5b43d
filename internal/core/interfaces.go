package core

import (
	"context"

	"autopost/internal/types"
)

// Authenticator decouples the HTTP layer from credential storage.
type Authenticator interface {
	// ResolveToken returns the Actor owning token. Unknown or mismatched
	// tokens yield ErrCodeAuthTokenInvalid; other errors are infrastructure
	// failures.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// SecurityService tracks failed authentications per client address.
type SecurityService interface {
	RecordFailure(ctx context.Context, ip string)
	IsIPBlocked(ctx context.Context, ip string) bool
}
