package schedule

import (
	"fmt"
	"time"

	"autopost/internal/types"
)

// MaxIterations bounds the advance loop of NextOccurrence.
const MaxIterations = 10_000

// Calculator computes schedule occurrences.
type Calculator struct {
	clock *ZonedClock
}

// NewCalculator creates a Calculator. A nil clock gets a fresh ZonedClock.
func NewCalculator(clock *ZonedClock) *Calculator {
	if clock == nil {
		clock = NewZonedClock()
	}
	return &Calculator{clock: clock}
}

// Clock returns the zoned clock used by the calculator.
func (c *Calculator) Clock() *ZonedClock {
	return c.clock
}

// NextOccurrence returns the first instant strictly after ref at which spec
// fires. The first candidate is spec's time of day on ref's civil date in the
// schedule zone; it is advanced one period at a time until it passes ref.
//
// Exceeding MaxIterations returns an internal_schedule_iteration_ceiling
// AppError.
func (c *Calculator) NextOccurrence(spec types.ScheduleSpec, ref time.Time) (time.Time, error) {
	zone := spec.TimeZoneID
	if zone == "" {
		zone = types.DefaultTimeZone
	}

	local, err := c.clock.ToZonedParts(ref, zone)
	if err != nil {
		return time.Time{}, err
	}
	candidate := withTimeOfDay(local, spec.TimeOfDay)

	instant, err := c.clock.ToInstant(candidate, zone)
	if err != nil {
		return time.Time{}, err
	}

	for i := 0; !instant.After(ref); i++ {
		if i >= MaxIterations {
			return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeInternalIterationLimit,
				fmt.Sprintf("no occurrence after %s within %d steps", ref.UTC().Format(time.RFC3339), MaxIterations),
				nil, map[string]any{"scheduleType": string(spec.Type)})
		}
		if step, ok := hourStep(spec); ok {
			instant = instant.Add(step)
			continue
		}
		if candidate, err = c.advance(spec, candidate, zone); err != nil {
			return time.Time{}, err
		}
		if instant, err = c.clock.ToInstant(candidate, zone); err != nil {
			return time.Time{}, err
		}
	}

	return instant.UTC(), nil
}

// hourStep reports the absolute step of a custom hours schedule. Hour steps
// never pass through civil time, where the repeated fall-back hour would map
// a step back onto its starting instant.
func hourStep(spec types.ScheduleSpec) (time.Duration, bool) {
	if spec.Type != types.ScheduleCustom || spec.IntervalUnit != types.IntervalHours {
		return 0, false
	}
	return time.Duration(spec.IntervalValue) * time.Hour, true
}

// advance moves candidate by one civil schedule period and re-applies the
// time of day.
func (c *Calculator) advance(spec types.ScheduleSpec, candidate CivilTime, zone string) (CivilTime, error) {
	var (
		next CivilTime
		err  error
	)

	switch spec.Type {
	case types.ScheduleDaily:
		next, err = c.clock.AddDays(candidate, zone, 1)
	case types.ScheduleWeekly:
		next, err = c.clock.AddDays(candidate, zone, 7)
	case types.ScheduleMonthly:
		next, err = c.clock.AddMonths(candidate, zone, 1)
	case types.ScheduleCustom:
		switch spec.IntervalUnit {
		case types.IntervalDays:
			next, err = c.clock.AddDays(candidate, zone, spec.IntervalValue)
		case types.IntervalWeeks:
			next, err = c.clock.AddDays(candidate, zone, spec.IntervalValue*7)
		default:
			return CivilTime{}, types.NewAppError(types.ErrCodeValidationInvalidSchedule,
				fmt.Sprintf("unsupported interval unit %q", spec.IntervalUnit), nil)
		}
	default:
		return CivilTime{}, types.NewAppError(types.ErrCodeValidationInvalidSchedule,
			fmt.Sprintf("unsupported schedule type %q", spec.Type), nil)
	}
	if err != nil {
		return CivilTime{}, err
	}
	return withTimeOfDay(next, spec.TimeOfDay), nil
}

func withTimeOfDay(parts CivilTime, tod types.TimeOfDay) CivilTime {
	parts.Hour = tod.Hour
	parts.Minute = tod.Minute
	parts.Second = 0
	return parts
}
