package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"autopost/internal/core"
	"autopost/internal/schedule"
	"autopost/internal/types"
)

// ScheduleService is the schedule configuration surface of scheduler.Service.
type ScheduleService interface {
	Configure(ctx context.Context, userID string, in schedule.Input) (*types.ScheduledPost, error)
	Get(ctx context.Context, userID string) (*types.ScheduledPost, error)
	Clear(ctx context.Context, userID string) error
	ReactivateForUser(ctx context.Context, userID string) (*types.ScheduledPost, error)
}

// ConfigureScheduleRequest is the body of PUT /v1/schedule. Interval fields
// are required for custom schedules and ignored otherwise.
type ConfigureScheduleRequest struct {
	ScheduleType  string  `json:"scheduleType" validate:"required,oneof=daily weekly monthly custom"`
	TimeOfDay     string  `json:"timeOfDay" validate:"required,hhmm"`
	TimeZoneID    string  `json:"timeZoneId" validate:"required,iana_tz"`
	IntervalValue *int    `json:"intervalValue,omitempty" validate:"omitempty,gt=0"`
	IntervalUnit  *string `json:"intervalUnit,omitempty" validate:"omitempty,oneof=hours days weeks"`
}

// ScheduleDTO is the client view of a scheduled post.
type ScheduleDTO struct {
	ID              string     `json:"id"`
	ScheduleType    string     `json:"scheduleType"`
	TimeOfDay       string     `json:"timeOfDay"`
	TimeZoneID      string     `json:"timeZoneId"`
	IntervalValue   *int       `json:"intervalValue,omitempty"`
	IntervalUnit    *string    `json:"intervalUnit,omitempty"`
	Status          string     `json:"status"`
	NextScheduledAt time.Time  `json:"nextScheduledAt"`
	LastPostedAt    *time.Time `json:"lastPostedAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ScheduleHandler manages the authenticated user's schedule.
type ScheduleHandler struct {
	svc       ScheduleService
	validator *core.Validator
	logger    *slog.Logger
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(svc ScheduleService, v *core.Validator, l *slog.Logger) *ScheduleHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ScheduleHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the schedule endpoints.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/schedule", func(r chi.Router) {
		r.Put("/", h.Configure)
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/reactivate", h.Reactivate)
	})
}

// Configure handles PUT /v1/schedule.
func (h *ScheduleHandler) Configure(w http.ResponseWriter, r *http.Request) {
	userID, err := actorUserID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req ConfigureScheduleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	in := schedule.Input{
		ScheduleType:  types.ScheduleType(req.ScheduleType),
		TimeOfDay:     req.TimeOfDay,
		TimeZoneID:    req.TimeZoneID,
		IntervalValue: req.IntervalValue,
	}
	if req.IntervalUnit != nil {
		unit := types.IntervalUnit(*req.IntervalUnit)
		in.IntervalUnit = &unit
	}

	post, err := h.svc.Configure(r.Context(), userID, in)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toScheduleDTO(post)})
}

// Get handles GET /v1/schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := actorUserID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	post, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toScheduleDTO(post)})
}

// Clear handles DELETE /v1/schedule. Deleting a missing schedule succeeds.
func (h *ScheduleHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := actorUserID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.svc.Clear(r.Context(), userID); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reactivate handles POST /v1/schedule/reactivate. Only a schedule in the
// error state can be reactivated; others yield 409 with the current status.
func (h *ScheduleHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	userID, err := actorUserID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	post, err := h.svc.ReactivateForUser(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "schedule reactivated via api",
		"user_id", userID,
		"record_id", post.ID,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toScheduleDTO(post)})
}

func toScheduleDTO(p *types.ScheduledPost) ScheduleDTO {
	dto := ScheduleDTO{
		ID:              p.ID,
		ScheduleType:    string(p.ScheduleType),
		TimeOfDay:       p.TimeOfDay,
		TimeZoneID:      p.TimeZoneID,
		IntervalValue:   p.IntervalValue,
		Status:          string(p.Status),
		NextScheduledAt: p.NextScheduledAt,
		LastPostedAt:    p.LastPostedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.IntervalUnit != nil {
		unit := string(*p.IntervalUnit)
		dto.IntervalUnit = &unit
	}
	return dto
}
