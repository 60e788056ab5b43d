package core

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"autopost/internal/types"
)

// errCodeIPBlocked is returned when an address exceeded the failed
// authentication threshold.
const errCodeIPBlocked = "ip_blocked"

// IPSecurityMiddleware rejects addresses with excessive failed
// authentications before any token is resolved. It passes through when no
// SecurityService is configured.
func (s *Server) IPSecurityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.SecurityService == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r)
		if s.SecurityService.IsIPBlocked(r.Context(), ip) {
			s.Logger.WarnContext(r.Context(), "blocked request from IP",
				slog.String("ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			JSON(w, r, http.StatusForbidden, APIErrorResponse{
				Error: ErrorDetail{
					Code:      errCodeIPBlocked,
					Message:   "Access denied",
					RequestID: types.GetRequestID(r.Context()),
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SecurityHeadersMiddleware sets standard security response headers.
func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// extractClientIP returns the first X-Forwarded-For entry, falling back to
// RemoteAddr without its port.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may not have a port (e.g., in tests).
		return r.RemoteAddr
	}
	return ip
}
