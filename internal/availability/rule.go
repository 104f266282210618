package availability

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/example/rehearsal-scheduler/internal/interval"
)

// ErrInvalidRule indicates an availability rule that cannot be expanded.
var ErrInvalidRule = errors.New("availability: invalid rule")

const minutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time with minute precision. 24:00 is accepted as
// an end-of-day bound.
type TimeOfDay struct {
	minutes int
}

// NewTimeOfDay builds a time of day from hour and minute components.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %02d:%02d out of range", ErrInvalidRule, hour, minute)
	}
	return TimeOfDay{minutes: hour*60 + minute}, nil
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	if len(value) != 5 || value[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q must be HH:MM", ErrInvalidRule, value)
	}
	hour, hErr := strconv.Atoi(value[:2])
	minute, mErr := strconv.Atoi(value[3:])
	if hErr != nil || mErr != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q must be HH:MM", ErrInvalidRule, value)
	}
	return NewTimeOfDay(hour, minute)
}

// MustTimeOfDay is ParseTimeOfDay that panics on malformed input.
func MustTimeOfDay(value string) TimeOfDay {
	tod, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return tod
}

// Minutes returns the offset from midnight.
func (t TimeOfDay) Minutes() int { return t.minutes }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.minutes/60, t.minutes%60)
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool { return t.minutes < other.minutes }

// on places the time of day on the calendar date of day in loc.
func (t TimeOfDay) on(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, t.minutes/60, t.minutes%60, 0, 0, loc)
}

// Rule is a weekly free window belonging to one user.
type Rule struct {
	ID        string
	UserID    string
	DayOfWeek time.Weekday
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Recurring bool
	// SpecificDate is the single day a non-recurring rule applies to.
	SpecificDate   *time.Time
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
}

// Validate checks the rule's structural invariants.
func (r Rule) Validate() error {
	if r.DayOfWeek < time.Sunday || r.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day of week %d out of range", ErrInvalidRule, r.DayOfWeek)
	}
	if !r.StartTime.Before(r.EndTime) {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidRule, r.StartTime, r.EndTime)
	}
	if r.EndTime.minutes > minutesPerDay {
		return fmt.Errorf("%w: end %s past midnight", ErrInvalidRule, r.EndTime)
	}
	if r.EffectiveFrom != nil && r.EffectiveUntil != nil && r.EffectiveUntil.Before(*r.EffectiveFrom) {
		return fmt.Errorf("%w: effective until precedes effective from", ErrInvalidRule)
	}
	return nil
}

// Unavailability is a dated block of time that overrides any free window.
type Unavailability struct {
	ID       string
	UserID   string
	Interval interval.Interval
	Reason   string
}

// Calendar bundles everything the engine needs to know about one user.
type Calendar struct {
	UserID           string
	Rules            []Rule
	Unavailabilities []Unavailability
}
