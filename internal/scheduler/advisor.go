// Package scheduler finds rehearsal start times where enough band members are
// free at once, and checks proposed slots against the same rule.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
)

var (
	// ErrNoQuorumMembers indicates the band has fewer eligible members than the quorum requires.
	ErrNoQuorumMembers = errors.New("scheduler: not enough eligible members for quorum")
	// ErrInvalidDuration indicates a non-positive rehearsal duration.
	ErrInvalidDuration = errors.New("scheduler: duration must be positive")
)

// Member is a band membership paired with the member's calendar.
type Member struct {
	band.Membership
	Calendar availability.Calendar
}

// Quorum is the number of simultaneously free members a slot needs. A zero
// Count means every eligible member. When Roles is set only members holding
// one of those roles are eligible.
type Quorum struct {
	Count int
	Roles []band.Role
}

// Suggestion is one candidate slot.
type Suggestion struct {
	Start            time.Time
	End              time.Time
	AvailableMembers []string
	AvailableCount   int
}

// SlotValidation reports who can and cannot make a proposed slot.
type SlotValidation struct {
	OK               bool
	Required         int
	AvailableMembers []string
	MissingMembers   []string
}

// Advisor ranks candidate slots using an availability engine.
type Advisor struct {
	engine *availability.Engine
}

// NewAdvisor constructs an Advisor. A nil engine uses UTC and the default lookahead.
func NewAdvisor(engine *availability.Engine) *Advisor {
	if engine == nil {
		engine = availability.NewEngine(nil, 0)
	}
	return &Advisor{engine: engine}
}

// SuggestSlots returns every boundary-aligned start inside window where at
// least the quorum of eligible members is free for duration. Results are
// ordered by available count descending, then start ascending. An empty
// result is not an error.
func (a *Advisor) SuggestSlots(members []Member, duration time.Duration, window interval.Interval, quorum Quorum) ([]Suggestion, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidDuration, duration)
	}
	if err := a.engine.CheckWindow(window); err != nil {
		return nil, err
	}
	eligible, required, err := resolveQuorum(members, quorum)
	if err != nil {
		return nil, err
	}

	free := make([][]interval.Interval, len(eligible))
	boundaries := make([]time.Time, 0)
	for i, m := range eligible {
		intervals, err := a.engine.FreeIntervals(m.Calendar, window)
		if err != nil {
			return nil, fmt.Errorf("free intervals for %s: %w", m.UserID, err)
		}
		free[i] = intervals
		for _, iv := range intervals {
			boundaries = append(boundaries, iv.Start(), iv.End())
		}
	}

	suggestions := make([]Suggestion, 0)
	for _, start := range dedupe(boundaries) {
		end := start.Add(duration)
		if end.After(window.End()) {
			break
		}
		slot := interval.MustNew(start, end)

		available := make([]string, 0, len(eligible))
		for i, m := range eligible {
			if coveredBy(free[i], slot) {
				available = append(available, m.UserID)
			}
		}
		if len(available) < required {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Start:            start,
			End:              end,
			AvailableMembers: available,
			AvailableCount:   len(available),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].AvailableCount != suggestions[j].AvailableCount {
			return suggestions[i].AvailableCount > suggestions[j].AvailableCount
		}
		return suggestions[i].Start.Before(suggestions[j].Start)
	})
	return suggestions, nil
}

// ValidateSlot checks a specific slot without enumerating candidates.
func (a *Advisor) ValidateSlot(members []Member, slot interval.Interval, quorum Quorum) (SlotValidation, error) {
	if err := a.engine.CheckWindow(slot); err != nil {
		return SlotValidation{}, err
	}
	eligible, required, err := resolveQuorum(members, quorum)
	if err != nil {
		return SlotValidation{}, err
	}

	result := SlotValidation{
		Required:         required,
		AvailableMembers: make([]string, 0, len(eligible)),
		MissingMembers:   make([]string, 0),
	}
	for _, m := range eligible {
		free, err := a.engine.IsFreeDuring(m.Calendar, slot)
		if err != nil {
			return SlotValidation{}, fmt.Errorf("availability for %s: %w", m.UserID, err)
		}
		if free {
			result.AvailableMembers = append(result.AvailableMembers, m.UserID)
		} else {
			result.MissingMembers = append(result.MissingMembers, m.UserID)
		}
	}
	result.OK = len(result.AvailableMembers) >= required
	return result, nil
}

// Limit truncates ranked suggestions to at most n entries. n <= 0 keeps all.
func Limit(suggestions []Suggestion, n int) []Suggestion {
	if n <= 0 || len(suggestions) <= n {
		return suggestions
	}
	return suggestions[:n]
}

// resolveQuorum returns the eligible members ordered by user id and the
// number of them that must be free.
func resolveQuorum(members []Member, quorum Quorum) ([]Member, int, error) {
	memberships := make([]band.Membership, len(members))
	byUser := make(map[string]Member, len(members))
	for i, m := range members {
		memberships[i] = m.Membership
		byUser[m.UserID] = m
	}

	accepted := band.Accepted(memberships, quorum.Roles...)
	eligible := make([]Member, 0, len(accepted))
	for _, m := range accepted {
		eligible = append(eligible, byUser[m.UserID])
	}

	required := quorum.Count
	if required <= 0 {
		required = len(eligible)
	}
	if len(eligible) == 0 || len(eligible) < required {
		return nil, 0, fmt.Errorf("%w: need %d, have %d", ErrNoQuorumMembers, required, len(eligible))
	}
	return eligible, required, nil
}

func coveredBy(free []interval.Interval, slot interval.Interval) bool {
	for _, iv := range free {
		if !iv.Start().After(slot.Start()) && !iv.End().Before(slot.End()) {
			return true
		}
	}
	return false
}

func dedupe(points []time.Time) []time.Time {
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })
	out := make([]time.Time, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1].Equal(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
