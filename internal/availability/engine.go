// Package availability expands weekly availability rules into dated free
// intervals and removes explicit unavailability from them.
package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/rehearsal-scheduler/internal/interval"
)

// DefaultLookahead bounds the width of any window the engine will expand.
const DefaultLookahead = 365 * 24 * time.Hour

// ErrWindowTooLarge indicates a window wider than the configured lookahead.
var ErrWindowTooLarge = errors.New("availability: window exceeds lookahead bound")

// Engine computes free intervals. It holds no per-user state and is safe for
// concurrent use.
type Engine struct {
	location  *time.Location
	lookahead time.Duration
}

// NewEngine constructs an Engine that interprets rule times of day in loc.
// A nil loc means UTC; a non-positive lookahead means DefaultLookahead.
func NewEngine(loc *time.Location, lookahead time.Duration) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Engine{location: loc, lookahead: lookahead}
}

// Location returns the zone rule times are interpreted in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// Lookahead returns the widest window the engine accepts.
func (e *Engine) Lookahead() time.Duration {
	if e == nil || e.lookahead <= 0 {
		return DefaultLookahead
	}
	return e.lookahead
}

// CheckWindow validates a window without expanding anything.
func (e *Engine) CheckWindow(window interval.Interval) error {
	if !window.Valid() {
		return fmt.Errorf("%w: window %s", interval.ErrInvalidInterval, window)
	}
	if window.Duration() > e.Lookahead() {
		return fmt.Errorf("%w: %s longer than %s", ErrWindowTooLarge, window.Duration(), e.Lookahead())
	}
	return nil
}

// FreeIntervals returns the calendar owner's free time inside window as an
// ordered, disjoint, non-adjacent sequence clipped to window.
//
// Overlapping rules are additive. Every unavailability is subtracted from the
// merged rule occurrences.
func (e *Engine) FreeIntervals(cal Calendar, window interval.Interval) ([]interval.Interval, error) {
	if err := e.CheckWindow(window); err != nil {
		return nil, err
	}

	occurrences := make([]interval.Interval, 0)
	for _, rule := range cal.Rules {
		expanded, err := e.expand(rule, window)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, expanded...)
	}
	if len(occurrences) == 0 {
		return []interval.Interval{}, nil
	}

	merged, err := interval.Merge(occurrences)
	if err != nil {
		return nil, err
	}

	cuts := make([]interval.Interval, 0, len(cal.Unavailabilities))
	for _, u := range cal.Unavailabilities {
		if ok, err := interval.Overlaps(u.Interval, window); err != nil {
			return nil, fmt.Errorf("unavailability %s: %w", u.ID, err)
		} else if ok {
			cuts = append(cuts, u.Interval)
		}
	}

	free, err := interval.SubtractAll(merged, cuts)
	if err != nil {
		return nil, err
	}
	return interval.Clip(free, window)
}

// IsFreeDuring reports whether candidate lies entirely inside one of the
// owner's free intervals.
func (e *Engine) IsFreeDuring(cal Calendar, candidate interval.Interval) (bool, error) {
	free, err := e.FreeIntervals(cal, candidate)
	if err != nil {
		return false, err
	}
	for _, iv := range free {
		if ok, _ := interval.Contains(iv, candidate); ok {
			return true, nil
		}
	}
	return false, nil
}

// expand produces the dated occurrences of rule that overlap window.
func (e *Engine) expand(rule Rule, window interval.Interval) ([]interval.Interval, error) {
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	loc := e.Location()

	firstDay := e.dateOf(window.Start())
	lastDay := e.dateOf(window.End())
	if rule.EffectiveFrom != nil {
		if from := e.calendarDate(*rule.EffectiveFrom); from.After(firstDay) {
			firstDay = from
		}
	}
	if rule.EffectiveUntil != nil {
		if until := e.calendarDate(*rule.EffectiveUntil); until.Before(lastDay) {
			lastDay = until
		}
	}
	if firstDay.After(lastDay) {
		return nil, nil
	}

	out := make([]interval.Interval, 0)
	add := func(day time.Time) {
		occ := interval.MustNew(rule.StartTime.on(day, loc), rule.EndTime.on(day, loc))
		if ok, _ := interval.Overlaps(occ, window); ok {
			out = append(out, occ)
		}
	}

	if !rule.Recurring {
		day, ok := e.storedDate(rule)
		if ok && !day.Before(firstDay) && !day.After(lastDay) {
			add(day)
		}
		return out, nil
	}

	offset := (int(rule.DayOfWeek) - int(firstDay.Weekday()) + 7) % 7
	for day := firstDay.AddDate(0, 0, offset); !day.After(lastDay); day = day.AddDate(0, 0, 7) {
		add(day)
	}
	return out, nil
}

// storedDate resolves the single day a non-recurring rule applies to.
func (e *Engine) storedDate(rule Rule) (time.Time, bool) {
	switch {
	case rule.SpecificDate != nil:
		return e.calendarDate(*rule.SpecificDate), true
	case rule.EffectiveFrom != nil:
		return e.calendarDate(*rule.EffectiveFrom), true
	default:
		return time.Time{}, false
	}
}

// dateOf truncates the instant t to midnight of its date in the engine location.
func (e *Engine) dateOf(t time.Time) time.Time {
	return e.calendarDate(t.In(e.Location()))
}

// calendarDate keeps the date t carries in its own location and places it
// at midnight in the engine location. Rule date bounds are calendar dates,
// not instants.
func (e *Engine) calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.Location())
}
