// Package schedule computes the occurrences of recurring post schedules.
//
// All calendar arithmetic goes through ZonedClock, which converts between
// civil time in an IANA zone and absolute instants. Day and month steps are
// civil-calendar steps and keep the wall-clock time across DST changes;
// hour steps are absolute.
package schedule

import (
	"fmt"
	"sync"
	"time"
	// Lambda runtimes ship without a zoneinfo database.
	_ "time/tzdata"

	"autopost/internal/types"
)

// CivilTime is a calendar date and wall-clock time with no attached zone.
type CivilTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

func (c CivilTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second)
}

// asUTC interprets the civil fields as a UTC instant. time.Date normalizes
// out-of-range fields (Feb 31 becomes Mar 3).
func (c CivilTime) asUTC() time.Time {
	return time.Date(c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second, 0, time.UTC)
}

func civilOf(t time.Time) CivilTime {
	return CivilTime{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
}

// ZonedClock converts between civil time in a named zone and instants.
// Loaded locations are cached; it is safe for concurrent use.
type ZonedClock struct {
	mu        sync.RWMutex
	locations map[string]*time.Location
}

// NewZonedClock returns a clock with an empty location cache.
func NewZonedClock() *ZonedClock {
	return &ZonedClock{locations: make(map[string]*time.Location)}
}

// Location resolves an IANA zone identifier. An empty id means UTC. Unknown
// identifiers return a validation_invalid_timezone AppError.
func (c *ZonedClock) Location(zoneID string) (*time.Location, error) {
	if zoneID == "" {
		zoneID = types.DefaultTimeZone
	}

	c.mu.RLock()
	loc, ok := c.locations[zoneID]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}

	// "Local" is a Go alias for the process zone, not an IANA name.
	if zoneID == "Local" {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidTimezone,
			fmt.Sprintf("unknown time zone %q", zoneID), nil)
	}
	loc, err := time.LoadLocation(zoneID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidTimezone,
			fmt.Sprintf("unknown time zone %q", zoneID), err)
	}

	c.mu.Lock()
	c.locations[zoneID] = loc
	c.mu.Unlock()
	return loc, nil
}

// ToZonedParts returns the civil time of instant in zoneID.
func (c *ZonedClock) ToZonedParts(instant time.Time, zoneID string) (CivilTime, error) {
	loc, err := c.Location(zoneID)
	if err != nil {
		return CivilTime{}, err
	}
	return civilOf(instant.In(loc)), nil
}

// ToInstant resolves civil time in zoneID to a UTC instant.
//
// The civil fields are first read as UTC, the zone offset at that trial
// instant is subtracted, and if the offset at the corrected instant differs
// the corrected offset is applied instead. Wall times inside a spring-forward
// gap therefore resolve using the post-transition offset (02:30 on a New York
// transition day becomes 01:30 EST), and ambiguous fall-back times resolve to
// the first occurrence.
func (c *ZonedClock) ToInstant(parts CivilTime, zoneID string) (time.Time, error) {
	loc, err := c.Location(zoneID)
	if err != nil {
		return time.Time{}, err
	}
	return toInstant(parts, loc), nil
}

func toInstant(parts CivilTime, loc *time.Location) time.Time {
	trial := parts.asUTC()
	offset := offsetAt(trial, loc)
	instant := trial.Add(-offset)

	if second := offsetAt(instant, loc); second != offset {
		instant = trial.Add(-second)
	}
	return instant
}

func offsetAt(t time.Time, loc *time.Location) time.Duration {
	_, seconds := t.In(loc).Zone()
	return time.Duration(seconds) * time.Second
}

// AddDays moves parts by n civil days in zoneID, keeping the wall-clock time
// where it exists on the target date.
func (c *ZonedClock) AddDays(parts CivilTime, zoneID string, n int) (CivilTime, error) {
	shifted := parts
	shifted.Day += n
	return c.reproject(shifted, zoneID)
}

// AddMonths moves parts by n civil months in zoneID. Day overflow normalizes
// forward (Jan 31 + 1 month is Mar 3 in a non-leap year).
func (c *ZonedClock) AddMonths(parts CivilTime, zoneID string, n int) (CivilTime, error) {
	shifted := parts
	shifted.Month += time.Month(n)
	return c.reproject(shifted, zoneID)
}

// AddHours moves parts by n hours of absolute time, so the wall-clock result
// shifts when a DST transition is crossed. A start inside the repeated
// fall-back hour resolves to its first occurrence; callers stepping through
// such a day should add to instants instead.
func (c *ZonedClock) AddHours(parts CivilTime, zoneID string, n int) (CivilTime, error) {
	loc, err := c.Location(zoneID)
	if err != nil {
		return CivilTime{}, err
	}
	instant := toInstant(parts, loc).Add(time.Duration(n) * time.Hour)
	return civilOf(instant.In(loc)), nil
}

// reproject normalizes a civil time through its instant so gap times come
// back as real wall-clock times.
func (c *ZonedClock) reproject(parts CivilTime, zoneID string) (CivilTime, error) {
	loc, err := c.Location(zoneID)
	if err != nil {
		return CivilTime{}, err
	}
	return civilOf(toInstant(civilOf(parts.asUTC()), loc).In(loc)), nil
}
