package core

import (
	"context"
	"testing"

	"autopost/internal/types"
)

var (
	_ Authenticator   = (*MockAuthenticator)(nil)
	_ SecurityService = (*MockSecurityService)(nil)
	_ HealthProbe     = (*mockHealthProbe)(nil)
	_ HealthProbe     = (*PingProbe)(nil)
)

func TestMockAuthenticator_FuncTakesPrecedence(t *testing.T) {
	m := &MockAuthenticator{
		Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid", nil),
		ResolveTokenFunc: func(_ context.Context, token string) (*types.Actor, error) {
			return &types.Actor{ID: token, Type: types.ActorTypeUser}, nil
		},
	}

	actor, err := m.ResolveToken(context.Background(), "user_9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if actor.ID != "user_9" {
		t.Errorf("got actor %+v", actor)
	}
	if m.CallCount() != 1 {
		t.Errorf("expected 1 call, got %d", m.CallCount())
	}
}
