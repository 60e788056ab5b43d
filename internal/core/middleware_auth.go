package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"autopost/internal/types"
)

// AuthMiddleware authenticates user routes with the caller's access token.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return s.bearerAuth(func() Authenticator { return s.Authenticator }, next)
}

// TriggerAuthMiddleware authenticates the batch trigger with the shared
// secret. It runs before the handler touches any repository.
func (s *Server) TriggerAuthMiddleware(next http.Handler) http.Handler {
	return s.bearerAuth(func() Authenticator { return s.TriggerAuthenticator }, next)
}

// bearerAuth resolves the Bearer token with the Authenticator returned by
// pick and injects the Actor into the request context. Missing tokens yield
// auth_token_missing; everything else that fails to resolve yields
// auth_token_invalid. A nil Authenticator rejects every request.
func (s *Server) bearerAuth(pick func() Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticator := pick()
		if authenticator == nil {
			s.Logger.ErrorContext(r.Context(), "authentication not configured",
				slog.String("path", r.URL.Path),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Authentication is not available")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		actor, err := authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}
		if actor == nil {
			s.recordAuthFailure(r)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}

		next.ServeHTTP(w, r.WithContext(types.WithActor(r.Context(), *actor)))
	})
}

// extractBearerToken parses "Bearer <token>" (case-insensitive scheme per
// RFC 7235). Returns empty string if the format is invalid.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// handleAuthError maps a resolution error to a response. Infrastructure
// failures are 500s and do not count against the client address.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeAuthTokenInvalid {
		s.recordAuthFailure(r)
		s.Logger.WarnContext(r.Context(), "authentication failed: token invalid",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
		return
	}

	s.Logger.ErrorContext(r.Context(), "authentication failed: unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "authentication failed", err))
}

func (s *Server) recordAuthFailure(r *http.Request) {
	if s.SecurityService != nil {
		s.SecurityService.RecordFailure(r.Context(), extractClientIP(r))
	}
}

// writeAuthError writes a 401 Unauthorized JSON response with the given error code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}

// RequireActor rejects requests whose Actor is absent or of another type.
func (s *Server) RequireActor(actorType types.ActorType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := types.GetActor(r.Context())
			if !ok || actor.Type != actorType {
				s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
