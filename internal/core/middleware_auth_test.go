package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"autopost/internal/types"
)

// actorEcho writes the Actor found in the context.
func actorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := types.GetActor(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(string(actor.Type) + ":" + actor.ID))
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp.Error.Code
}

func TestAuthMiddleware_InjectsActor(t *testing.T) {
	srv := newTestServer(t)
	auth := &MockAuthenticator{Actor: &types.Actor{ID: "user_1", Type: types.ActorTypeUser}}
	srv.Authenticator = auth

	req := httptest.NewRequest(http.MethodGet, "/v1/schedule", nil)
	req.Header.Set("Authorization", "Bearer tok_abc")
	rec := httptest.NewRecorder()

	srv.AuthMiddleware(actorEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "user:user_1" {
		t.Errorf("got body %q", got)
	}
	if len(auth.Calls) != 1 || auth.Calls[0] != "tok_abc" {
		t.Errorf("expected token tok_abc to be resolved, got %v", auth.Calls)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	cases := map[string]string{
		"no header":    "",
		"wrong scheme": "Basic dXNlcjpwYXNz",
		"empty bearer": "Bearer   ",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t)
			auth := &MockAuthenticator{Actor: &types.Actor{ID: "user_1", Type: types.ActorTypeUser}}
			srv.Authenticator = auth

			req := httptest.NewRequest(http.MethodGet, "/v1/schedule", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			srv.AuthMiddleware(actorEcho()).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if code := decodeErrorCode(t, rec); code != string(types.ErrCodeAuthTokenMissing) {
				t.Errorf("got code %q", code)
			}
			if auth.CallCount() != 0 {
				t.Error("authenticator must not be called without a token")
			}
		})
	}
}

func TestAuthMiddleware_InvalidTokenRecordsFailure(t *testing.T) {
	srv := newTestServer(t)
	sec := &MockSecurityService{}
	srv.SecurityService = sec
	srv.Authenticator = &MockAuthenticator{
		Err: types.NewAppError(types.ErrCodeAuthTokenInvalid, "unknown token", nil),
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/schedule", nil)
	req.Header.Set("Authorization", "Bearer nope")
	req.RemoteAddr = "203.0.113.9:4411"
	rec := httptest.NewRecorder()
	srv.AuthMiddleware(actorEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != string(types.ErrCodeAuthTokenInvalid) {
		t.Errorf("got code %q", code)
	}
	if len(sec.Failures) != 1 || sec.Failures[0] != "203.0.113.9" {
		t.Errorf("expected one failure for 203.0.113.9, got %v", sec.Failures)
	}
}

func TestAuthMiddleware_LookupFailureIs500(t *testing.T) {
	srv := newTestServer(t)
	sec := &MockSecurityService{}
	srv.SecurityService = sec
	srv.Authenticator = &MockAuthenticator{Err: errors.New("connection reset")}

	req := httptest.NewRequest(http.MethodGet, "/v1/schedule", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	srv.AuthMiddleware(actorEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if sec.FailureCount() != 0 {
		t.Error("infrastructure errors must not count against the client")
	}
}

func TestAuthMiddleware_NilAuthenticatorRejects(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/trigger/process-due", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.TriggerAuthMiddleware(actorEcho()).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestTriggerAuthMiddleware_UsesTriggerAuthenticator(t *testing.T) {
	srv := newTestServer(t)
	userAuth := &MockAuthenticator{Actor: &types.Actor{ID: "user_1", Type: types.ActorTypeUser}}
	srv.Authenticator = userAuth
	srv.TriggerAuthenticator = &MockAuthenticator{Actor: &types.Actor{ID: "trigger", Type: types.ActorTypeTrigger}}

	req := httptest.NewRequest(http.MethodPost, "/v1/trigger/process-due", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.TriggerAuthMiddleware(actorEcho()).ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "trigger:trigger" {
		t.Errorf("got body %q", got)
	}
	if userAuth.CallCount() != 0 {
		t.Error("user authenticator must not see the trigger secret")
	}
}

func TestRequireActor(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.RequireActor(types.ActorTypeTrigger)(actorEcho())

	cases := []struct {
		name  string
		actor *types.Actor
		want  int
	}{
		{"matching type", &types.Actor{ID: "trigger", Type: types.ActorTypeTrigger}, http.StatusOK},
		{"other type", &types.Actor{ID: "user_1", Type: types.ActorTypeUser}, http.StatusUnauthorized},
		{"no actor", nil, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(types.WithActor(req.Context(), *tc.actor))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":    "abc",
		"bearer abc":    "abc",
		"BEARER  abc  ": "abc",
		"Bearer":        "",
		"Token abc":     "",
		"":              "",
	}
	for header, want := range cases {
		if got := extractBearerToken(header); got != want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
