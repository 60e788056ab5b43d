package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopost/internal/schedule"
	"autopost/internal/types"
)

type mockScheduleService struct {
	configureFn  func(ctx context.Context, userID string, in schedule.Input) (*types.ScheduledPost, error)
	getFn        func(ctx context.Context, userID string) (*types.ScheduledPost, error)
	clearFn      func(ctx context.Context, userID string) error
	reactivateFn func(ctx context.Context, userID string) (*types.ScheduledPost, error)

	configured *schedule.Input
}

func (m *mockScheduleService) Configure(ctx context.Context, userID string, in schedule.Input) (*types.ScheduledPost, error) {
	m.configured = &in
	if m.configureFn != nil {
		return m.configureFn(ctx, userID, in)
	}
	return samplePost(userID), nil
}

func (m *mockScheduleService) Get(ctx context.Context, userID string) (*types.ScheduledPost, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return samplePost(userID), nil
}

func (m *mockScheduleService) Clear(ctx context.Context, userID string) error {
	if m.clearFn != nil {
		return m.clearFn(ctx, userID)
	}
	return nil
}

func (m *mockScheduleService) ReactivateForUser(ctx context.Context, userID string) (*types.ScheduledPost, error) {
	if m.reactivateFn != nil {
		return m.reactivateFn(ctx, userID)
	}
	return samplePost(userID), nil
}

func samplePost(userID string) *types.ScheduledPost {
	return &types.ScheduledPost{
		ID:              "sp_1",
		UserID:          userID,
		ScheduleType:    types.ScheduleDaily,
		TimeOfDay:       "09:00",
		TimeZoneID:      "America/New_York",
		NextScheduledAt: time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC),
		Status:          types.StatusActive,
	}
}

func newScheduleRouter(svc ScheduleService) http.Handler {
	return newRouter(NewScheduleHandler(svc, testValidator(), testLogger()).RegisterRoutes)
}

func TestScheduleHandler_Configure(t *testing.T) {
	svc := &mockScheduleService{}
	body := map[string]any{
		"scheduleType": "daily",
		"timeOfDay":    "09:00",
		"timeZoneId":   "America/New_York",
	}

	rec := doRequest(t, newScheduleRouter(svc), http.MethodPut, "/v1/schedule", "user_1", body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.configured)
	assert.Equal(t, types.ScheduleDaily, svc.configured.ScheduleType)
	assert.Equal(t, "09:00", svc.configured.TimeOfDay)
	assert.Nil(t, svc.configured.IntervalUnit)

	var dto ScheduleDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, "sp_1", dto.ID)
	assert.Equal(t, "active", dto.Status)
	assert.True(t, dto.NextScheduledAt.Equal(time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC)))
}

func TestScheduleHandler_ConfigureCustomPassesInterval(t *testing.T) {
	svc := &mockScheduleService{}
	body := `{"scheduleType":"custom","timeOfDay":"09:00","timeZoneId":"UTC","intervalValue":3,"intervalUnit":"hours"}`

	rec := doRequest(t, newScheduleRouter(svc), http.MethodPut, "/v1/schedule", "user_1", body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.configured.IntervalValue)
	require.NotNil(t, svc.configured.IntervalUnit)
	assert.Equal(t, 3, *svc.configured.IntervalValue)
	assert.Equal(t, types.IntervalHours, *svc.configured.IntervalUnit)
}

func TestScheduleHandler_ConfigureValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		code types.ErrorCode
	}{
		{"bad time", `{"scheduleType":"daily","timeOfDay":"9am","timeZoneId":"UTC"}`, types.ErrCodeValidationInvalidTimeOfDay},
		{"bad zone", `{"scheduleType":"daily","timeOfDay":"09:00","timeZoneId":"Mars/Base"}`, types.ErrCodeValidationInvalidTimezone},
		{"missing zone", `{"scheduleType":"daily","timeOfDay":"09:00"}`, types.ErrCodeValidationMissingField},
		{"bad type", `{"scheduleType":"yearly","timeOfDay":"09:00","timeZoneId":"UTC"}`, types.ErrCodeValidationInvalidSchedule},
		{"bad unit", `{"scheduleType":"custom","timeOfDay":"09:00","timeZoneId":"UTC","intervalValue":1,"intervalUnit":"months"}`, types.ErrCodeValidationInvalidSchedule},
		{"unknown field", `{"scheduleType":"daily","timeOfDay":"09:00","timeZoneId":"UTC","cron":"* * *"}`, types.ErrCodeValidationInvalidBody},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockScheduleService{}
			rec := doRequest(t, newScheduleRouter(svc), http.MethodPut, "/v1/schedule", "user_1", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(tc.code), errorCode(t, rec))
			assert.Nil(t, svc.configured, "service must not be called on invalid input")
		})
	}
}

func TestScheduleHandler_ConfigureServiceValidation(t *testing.T) {
	svc := &mockScheduleService{
		configureFn: func(context.Context, string, schedule.Input) (*types.ScheduledPost, error) {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidSchedule, "custom schedules need an interval", nil)
		},
	}
	body := `{"scheduleType":"custom","timeOfDay":"09:00","timeZoneId":"UTC"}`

	rec := doRequest(t, newScheduleRouter(svc), http.MethodPut, "/v1/schedule", "user_1", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidSchedule), errorCode(t, rec))
}

func TestScheduleHandler_GetNotFound(t *testing.T) {
	svc := &mockScheduleService{
		getFn: func(context.Context, string) (*types.ScheduledPost, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "no schedule", nil)
		},
	}

	rec := doRequest(t, newScheduleRouter(svc), http.MethodGet, "/v1/schedule", "user_1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundSchedule), errorCode(t, rec))
}

func TestScheduleHandler_Clear(t *testing.T) {
	var cleared string
	svc := &mockScheduleService{clearFn: func(_ context.Context, userID string) error {
		cleared = userID
		return nil
	}}

	rec := doRequest(t, newScheduleRouter(svc), http.MethodDelete, "/v1/schedule", "user_1", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user_1", cleared)
}

func TestScheduleHandler_ReactivateConflict(t *testing.T) {
	svc := &mockScheduleService{
		reactivateFn: func(context.Context, string) (*types.ScheduledPost, error) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictScheduleState,
				"schedule is not in error state", nil, map[string]any{"status": "active"})
		},
	}

	rec := doRequest(t, newScheduleRouter(svc), http.MethodPost, "/v1/schedule/reactivate", "user_1", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(types.ErrCodeConflictScheduleState), errorCode(t, rec))
}

func TestScheduleHandler_Reactivate(t *testing.T) {
	svc := &mockScheduleService{}

	rec := doRequest(t, newScheduleRouter(svc), http.MethodPost, "/v1/schedule/reactivate", "user_1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var dto ScheduleDTO
	decodeData(t, rec, &dto)
	assert.Equal(t, "active", dto.Status)
}

func TestScheduleHandler_RequiresUser(t *testing.T) {
	rec := doRequest(t, newScheduleRouter(&mockScheduleService{}), http.MethodGet, "/v1/schedule", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToScheduleDTO_CustomInterval(t *testing.T) {
	value, unit := 2, types.IntervalWeeks
	p := samplePost("user_1")
	p.ScheduleType = types.ScheduleCustom
	p.IntervalValue = &value
	p.IntervalUnit = &unit

	dto := toScheduleDTO(p)

	require.NotNil(t, dto.IntervalUnit)
	assert.Equal(t, "weeks", *dto.IntervalUnit)
	assert.Equal(t, 2, *dto.IntervalValue)
}
