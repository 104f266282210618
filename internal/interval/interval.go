// Package interval models half-open time ranges [start, end) and the set
// operations the availability and scheduling code is built on.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidInterval indicates an interval whose start is not before its end.
var ErrInvalidInterval = errors.New("interval: start must be before end")

// Interval is an immutable half-open time range. The zero value is invalid.
type Interval struct {
	start time.Time
	end   time.Time
}

// New constructs an interval, rejecting ranges where start >= end.
func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{start: start, end: end}, nil
}

// MustNew is like New but panics on malformed input. Intended for tests and constants.
func MustNew(start, end time.Time) Interval {
	iv, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Start returns the inclusive lower bound.
func (i Interval) Start() time.Time { return i.start }

// End returns the exclusive upper bound.
func (i Interval) End() time.Time { return i.end }

// Duration returns end - start.
func (i Interval) Duration() time.Duration { return i.end.Sub(i.start) }

// Valid reports whether start < end.
func (i Interval) Valid() bool { return i.start.Before(i.end) }

// Equal reports whether both bounds denote the same instants.
func (i Interval) Equal(other Interval) bool {
	return i.start.Equal(other.start) && i.end.Equal(other.end)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.start.Format(time.RFC3339), i.end.Format(time.RFC3339))
}

func (i Interval) validate() error {
	if !i.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, i.String())
	}
	return nil
}

func validate(intervals ...Interval) error {
	for _, iv := range intervals {
		if err := iv.validate(); err != nil {
			return err
		}
	}
	return nil
}

// Overlaps reports whether a and b share at least one instant.
func Overlaps(a, b Interval) (bool, error) {
	if err := validate(a, b); err != nil {
		return false, err
	}
	return overlaps(a, b), nil
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Interval) (bool, error) {
	if err := validate(outer, inner); err != nil {
		return false, err
	}
	return contains(outer, inner), nil
}

// Intersect returns the common part of a and b. The boolean is false when
// the intervals do not overlap.
func Intersect(a, b Interval) (Interval, bool, error) {
	if err := validate(a, b); err != nil {
		return Interval{}, false, err
	}
	iv, ok := intersect(a, b)
	return iv, ok, nil
}

// Subtract returns a minus b as zero, one or two ordered fragments.
func Subtract(a, b Interval) ([]Interval, error) {
	if err := validate(a, b); err != nil {
		return nil, err
	}
	return subtract(a, b), nil
}

// Merge sorts the intervals by start and coalesces those that overlap or
// touch, returning a maximal disjoint, non-adjacent ordered set.
func Merge(intervals []Interval) ([]Interval, error) {
	if err := validate(intervals...); err != nil {
		return nil, err
	}
	return merge(intervals), nil
}

// Clip intersects every interval with window, dropping the ones outside it.
func Clip(intervals []Interval, window Interval) ([]Interval, error) {
	if err := validate(window); err != nil {
		return nil, err
	}
	if err := validate(intervals...); err != nil {
		return nil, err
	}
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if clipped, ok := intersect(iv, window); ok {
			out = append(out, clipped)
		}
	}
	return out, nil
}

// SubtractAll removes every interval in cuts from the ordered set base.
func SubtractAll(base []Interval, cuts []Interval) ([]Interval, error) {
	if err := validate(base...); err != nil {
		return nil, err
	}
	if err := validate(cuts...); err != nil {
		return nil, err
	}
	remaining := append([]Interval(nil), base...)
	for _, cut := range cuts {
		next := make([]Interval, 0, len(remaining)+1)
		for _, iv := range remaining {
			next = append(next, subtract(iv, cut)...)
		}
		remaining = next
	}
	return remaining, nil
}

func overlaps(a, b Interval) bool {
	return a.start.Before(b.end) && b.start.Before(a.end)
}

func contains(outer, inner Interval) bool {
	return !inner.start.Before(outer.start) && !inner.end.After(outer.end)
}

func intersect(a, b Interval) (Interval, bool) {
	if !overlaps(a, b) {
		return Interval{}, false
	}
	start := a.start
	if b.start.After(start) {
		start = b.start
	}
	end := a.end
	if b.end.Before(end) {
		end = b.end
	}
	return Interval{start: start, end: end}, true
}

func subtract(a, b Interval) []Interval {
	if !overlaps(a, b) {
		return []Interval{a}
	}
	fragments := make([]Interval, 0, 2)
	if a.start.Before(b.start) {
		fragments = append(fragments, Interval{start: a.start, end: b.start})
	}
	if b.end.Before(a.end) {
		fragments = append(fragments, Interval{start: b.end, end: a.end})
	}
	return fragments
}

func merge(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]Interval(nil), intervals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].start.Equal(sorted[j].start) {
			return sorted[i].end.Before(sorted[j].end)
		}
		return sorted[i].start.Before(sorted[j].start)
	})

	merged := make([]Interval, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if !next.start.After(current.end) {
			if next.end.After(current.end) {
				current.end = next.end
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
