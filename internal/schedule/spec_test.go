package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopost/internal/types"
)

func TestParseTimeOfDay(t *testing.T) {
	valid := map[string]types.TimeOfDay{
		"00:00": {Hour: 0, Minute: 0},
		"09:05": {Hour: 9, Minute: 5},
		"23:59": {Hour: 23, Minute: 59},
	}
	for in, want := range valid {
		got, err := ParseTimeOfDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
		assert.Equal(t, in, FormatTimeOfDay(got))
	}

	for _, in := range []string{"", "9:00", "24:00", "12:60", "12-00", "+1:00", "12:0a", "12:000", " 9:00"} {
		_, err := ParseTimeOfDay(in)
		assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidTimeOfDay), "input %q", in)
	}
}

func intPtr(v int) *int { return &v }

func unitPtr(u types.IntervalUnit) *types.IntervalUnit { return &u }

func TestValidate(t *testing.T) {
	clock := NewZonedClock()

	t.Run("daily drops interval fields", func(t *testing.T) {
		spec, err := clock.Validate(Input{
			ScheduleType:  types.ScheduleDaily,
			TimeOfDay:     "09:00",
			TimeZoneID:    newYork,
			IntervalValue: intPtr(3),
			IntervalUnit:  unitPtr(types.IntervalDays),
		})
		require.NoError(t, err)
		assert.Equal(t, types.ScheduleSpec{Type: types.ScheduleDaily, TimeOfDay: tod(9, 0), TimeZoneID: newYork}, spec)
	})

	t.Run("custom keeps interval", func(t *testing.T) {
		spec, err := clock.Validate(Input{
			ScheduleType:  types.ScheduleCustom,
			TimeOfDay:     "07:30",
			TimeZoneID:    "UTC",
			IntervalValue: intPtr(6),
			IntervalUnit:  unitPtr(types.IntervalHours),
		})
		require.NoError(t, err)
		assert.Equal(t, 6, spec.IntervalValue)
		assert.Equal(t, types.IntervalHours, spec.IntervalUnit)
	})

	failures := []struct {
		name string
		in   Input
		code types.ErrorCode
	}{
		{"unknown type", Input{ScheduleType: "yearly", TimeOfDay: "09:00", TimeZoneID: "UTC"}, types.ErrCodeValidationInvalidSchedule},
		{"bad time", Input{ScheduleType: types.ScheduleDaily, TimeOfDay: "9am", TimeZoneID: "UTC"}, types.ErrCodeValidationInvalidTimeOfDay},
		{"empty zone", Input{ScheduleType: types.ScheduleDaily, TimeOfDay: "09:00"}, types.ErrCodeValidationInvalidTimezone},
		{"unknown zone", Input{ScheduleType: types.ScheduleDaily, TimeOfDay: "09:00", TimeZoneID: "Atlantis/Capital"}, types.ErrCodeValidationInvalidTimezone},
		{"custom missing unit", Input{ScheduleType: types.ScheduleCustom, TimeOfDay: "09:00", TimeZoneID: "UTC", IntervalValue: intPtr(2)}, types.ErrCodeValidationInvalidSchedule},
		{"custom missing value", Input{ScheduleType: types.ScheduleCustom, TimeOfDay: "09:00", TimeZoneID: "UTC", IntervalUnit: unitPtr(types.IntervalDays)}, types.ErrCodeValidationInvalidSchedule},
		{"custom zero value", Input{ScheduleType: types.ScheduleCustom, TimeOfDay: "09:00", TimeZoneID: "UTC", IntervalValue: intPtr(0), IntervalUnit: unitPtr(types.IntervalDays)}, types.ErrCodeValidationInvalidSchedule},
		{"custom bad unit", Input{ScheduleType: types.ScheduleCustom, TimeOfDay: "09:00", TimeZoneID: "UTC", IntervalValue: intPtr(1), IntervalUnit: unitPtr("months")}, types.ErrCodeValidationInvalidSchedule},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := clock.Validate(tt.in)
			require.Error(t, err)
			assert.True(t, types.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestSpecOf(t *testing.T) {
	post := &types.ScheduledPost{
		ScheduleType:  types.ScheduleCustom,
		TimeOfDay:     "18:15",
		IntervalValue: intPtr(2),
		IntervalUnit:  unitPtr(types.IntervalWeeks),
	}

	spec, err := SpecOf(post)
	require.NoError(t, err)
	assert.Equal(t, types.ScheduleSpec{
		Type:          types.ScheduleCustom,
		TimeOfDay:     tod(18, 15),
		TimeZoneID:    "UTC",
		IntervalValue: 2,
		IntervalUnit:  types.IntervalWeeks,
	}, spec)
}
