package core

import (
	"context"
	"sync"

	"autopost/internal/types"
)

// MockAuthenticator implements Authenticator for tests. ResolveTokenFunc takes
// precedence over Err, which takes precedence over Actor.
//
//	auth := &MockAuthenticator{
//	    Actor: &types.Actor{ID: "user_1", Type: types.ActorTypeUser},
//	}
type MockAuthenticator struct {
	Actor            *types.Actor
	Err              error
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	mu    sync.Mutex
	Calls []string
}

// ResolveToken implements Authenticator.
func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

// CallCount returns the number of ResolveToken calls.
func (m *MockAuthenticator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockSecurityService implements SecurityService for tests. Addresses in
// BlockedIPs are reported blocked; failures are recorded in Failures.
type MockSecurityService struct {
	BlockedIPs map[string]bool

	mu       sync.Mutex
	Failures []string
}

// RecordFailure implements SecurityService.
func (m *MockSecurityService) RecordFailure(_ context.Context, ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures = append(m.Failures, ip)
}

// IsIPBlocked implements SecurityService.
func (m *MockSecurityService) IsIPBlocked(_ context.Context, ip string) bool {
	return m.BlockedIPs[ip]
}

// FailureCount returns the number of recorded failures.
func (m *MockSecurityService) FailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Failures)
}
