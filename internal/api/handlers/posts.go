package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"autopost/internal/core"
	"autopost/internal/types"
)

// PostService is the on-demand publishing surface of scheduler.Service.
type PostService interface {
	PublishNow(ctx context.Context, userID string) (*types.PublishResult, error)
	Preview(ctx context.Context, userID, promptText string) (string, error)
}

// PreviewRequest is the optional body of POST /v1/posts/preview. An empty
// prompt falls back to the user's active prompt.
type PreviewRequest struct {
	PromptText string `json:"promptText" validate:"max=2000"`
}

// PreviewResponse carries the candidate text.
type PreviewResponse struct {
	Text string `json:"text"`
}

// PostHandler publishes and previews posts outside the schedule.
type PostHandler struct {
	svc       PostService
	validator *core.Validator
	logger    *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(svc PostService, v *core.Validator, l *slog.Logger) *PostHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PostHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the post endpoints.
func (h *PostHandler) RegisterRoutes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Post("/", h.PublishNow)
		r.Post("/preview", h.Preview)
	})
}

// PublishNow handles POST /v1/posts.
func (h *PostHandler) PublishNow(w http.ResponseWriter, r *http.Request) {
	userID, err := actorUserID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	res, err := h.svc.PublishNow(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: res})
}

// Preview handles POST /v1/posts/preview.
func (h *PostHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, err := actorUserID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req PreviewRequest
	if hasBody(r) {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
		if err := h.validator.ValidateStruct(req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	text, err := h.svc.Preview(r.Context(), userID, req.PromptText)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: PreviewResponse{Text: text}})
}
