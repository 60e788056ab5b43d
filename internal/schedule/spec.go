package schedule

import (
	"fmt"

	"autopost/internal/types"
)

// ParseTimeOfDay parses a 24-hour "HH:MM" string. Exactly two digits are
// required on each side of the colon.
func ParseTimeOfDay(s string) (types.TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' || !isDigit(s[0]) || !isDigit(s[1]) || !isDigit(s[3]) || !isDigit(s[4]) {
		return types.TimeOfDay{}, types.NewAppError(types.ErrCodeValidationInvalidTimeOfDay,
			fmt.Sprintf("expected format HH:MM, got %q", s), nil)
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 {
		return types.TimeOfDay{}, types.NewAppError(types.ErrCodeValidationInvalidTimeOfDay,
			fmt.Sprintf("hour %d out of range [0,23]", hour), nil)
	}
	if minute > 59 {
		return types.TimeOfDay{}, types.NewAppError(types.ErrCodeValidationInvalidTimeOfDay,
			fmt.Sprintf("minute %d out of range [0,59]", minute), nil)
	}
	return types.TimeOfDay{Hour: hour, Minute: minute}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// FormatTimeOfDay renders t as "HH:MM".
func FormatTimeOfDay(t types.TimeOfDay) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Input is the user-supplied schedule configuration.
type Input struct {
	ScheduleType  types.ScheduleType
	TimeOfDay     string
	TimeZoneID    string
	IntervalValue *int
	IntervalUnit  *types.IntervalUnit
}

// Validate checks the shape of in and returns the normalized spec.
// Interval fields are required for custom schedules and dropped otherwise.
func (c *ZonedClock) Validate(in Input) (types.ScheduleSpec, error) {
	if !in.ScheduleType.Valid() {
		return types.ScheduleSpec{}, types.NewAppError(types.ErrCodeValidationInvalidSchedule,
			fmt.Sprintf("unsupported schedule type %q", in.ScheduleType), nil)
	}

	tod, err := ParseTimeOfDay(in.TimeOfDay)
	if err != nil {
		return types.ScheduleSpec{}, err
	}

	if in.TimeZoneID == "" {
		return types.ScheduleSpec{}, types.NewAppError(types.ErrCodeValidationInvalidTimezone,
			"timeZoneId is required", nil)
	}
	if _, err := c.Location(in.TimeZoneID); err != nil {
		return types.ScheduleSpec{}, err
	}

	spec := types.ScheduleSpec{
		Type:       in.ScheduleType,
		TimeOfDay:  tod,
		TimeZoneID: in.TimeZoneID,
	}

	if in.ScheduleType != types.ScheduleCustom {
		return spec, nil
	}

	if in.IntervalValue == nil || in.IntervalUnit == nil {
		return types.ScheduleSpec{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidSchedule,
			"custom schedules require intervalValue and intervalUnit", nil,
			map[string]any{"scheduleType": string(in.ScheduleType)})
	}
	if *in.IntervalValue <= 0 {
		return types.ScheduleSpec{}, types.NewAppError(types.ErrCodeValidationInvalidSchedule,
			"intervalValue must be positive", nil)
	}
	if !in.IntervalUnit.Valid() {
		return types.ScheduleSpec{}, types.NewAppError(types.ErrCodeValidationInvalidSchedule,
			fmt.Sprintf("unsupported interval unit %q", *in.IntervalUnit), nil)
	}

	spec.IntervalValue = *in.IntervalValue
	spec.IntervalUnit = *in.IntervalUnit
	return spec, nil
}

// SpecOf rebuilds the schedule spec of a persisted record. A missing zone
// falls back to UTC.
func SpecOf(post *types.ScheduledPost) (types.ScheduleSpec, error) {
	tod, err := ParseTimeOfDay(post.TimeOfDay)
	if err != nil {
		return types.ScheduleSpec{}, err
	}
	spec := types.ScheduleSpec{
		Type:       post.ScheduleType,
		TimeOfDay:  tod,
		TimeZoneID: post.TimeZoneID,
	}
	if spec.TimeZoneID == "" {
		spec.TimeZoneID = types.DefaultTimeZone
	}
	if post.IntervalValue != nil {
		spec.IntervalValue = *post.IntervalValue
	}
	if post.IntervalUnit != nil {
		spec.IntervalUnit = *post.IntervalUnit
	}
	return spec, nil
}
