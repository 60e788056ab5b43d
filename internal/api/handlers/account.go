package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"autopost/internal/core"
)

// AccountService removes a user and everything they own.
type AccountService interface {
	DeleteAccount(ctx context.Context, userID string) error
}

// AccountHandler handles account-level operations.
type AccountHandler struct {
	svc    AccountService
	logger *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(svc AccountService, l *slog.Logger) *AccountHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AccountHandler{svc: svc, logger: l}
}

// RegisterRoutes mounts the account endpoint.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/account", h.Delete)
}

// Delete handles DELETE /v1/account. The caller's access token stops
// resolving once the credential row is gone.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := actorUserID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.svc.DeleteAccount(r.Context(), userID); err != nil {
		h.logger.ErrorContext(r.Context(), "account deletion failed",
			"user_id", userID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
