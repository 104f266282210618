// Package lifecycle defines rehearsal statuses, the attendee response and
// attendance sub-states, and the predicates deciding who may change them.
//
// Every function here is pure: callers load state, apply a transition and
// persist the returned copy.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
)

var (
	// ErrUnauthorizedTransition indicates the actor may not perform the requested change.
	ErrUnauthorizedTransition = errors.New("lifecycle: actor not permitted to perform transition")
	// ErrInvalidTransition indicates the change is not allowed from the current state.
	ErrInvalidTransition = errors.New("lifecycle: transition not allowed from current state")
	// ErrInvalidAttendanceData indicates an attendance status and late minutes mismatch.
	ErrInvalidAttendanceData = errors.New("lifecycle: invalid attendance data")
	// ErrInvalidResponse indicates an unknown attendee response.
	ErrInvalidResponse = errors.New("lifecycle: invalid response")
)

// Status is the state of a rehearsal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
)

// Response is an attendee's answer to an invitation to rehearse.
type Response string

const (
	ResponseUnset Response = ""
	ResponseYes   Response = "yes"
	ResponseNo    Response = "no"
	ResponseMaybe Response = "maybe"
)

// AttendanceStatus records whether an attendee actually showed up.
type AttendanceStatus string

const (
	AttendanceUnset    AttendanceStatus = ""
	AttendanceAttended AttendanceStatus = "attended"
	AttendanceAbsent   AttendanceStatus = "absent"
	AttendanceLate     AttendanceStatus = "late"
)

// Action names a lifecycle operation for authorization checks.
type Action string

const (
	ActionCancel           Action = "cancel"
	ActionComplete         Action = "complete"
	ActionRespond          Action = "respond"
	ActionRecordAttendance Action = "record_attendance"
)

var transitions = map[Status][]Status{
	StatusScheduled: {StatusCanceled, StatusCompleted},
	StatusCanceled:  {},
	StatusCompleted: {},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseResponse validates a response supplied by an attendee. Unset is not
// a valid answer.
func ParseResponse(value string) (Response, error) {
	switch r := Response(value); r {
	case ResponseYes, ResponseNo, ResponseMaybe:
		return r, nil
	default:
		return ResponseUnset, fmt.Errorf("%w: %q", ErrInvalidResponse, value)
	}
}

// ParseAttendanceStatus validates an attendance status supplied by an admin.
func ParseAttendanceStatus(value string) (AttendanceStatus, error) {
	switch s := AttendanceStatus(value); s {
	case AttendanceAttended, AttendanceAbsent, AttendanceLate:
		return s, nil
	default:
		return AttendanceUnset, fmt.Errorf("%w: unknown attendance status %q", ErrInvalidAttendanceData, value)
	}
}

// Rehearsal is the lifecycle view of a rehearsal.
type Rehearsal struct {
	ID        string
	BandID    string
	CreatedBy string
	Interval  interval.Interval
	Status    Status
}

// Attendee is one member's row on a rehearsal.
type Attendee struct {
	RehearsalID      string
	UserID           string
	Response         Response
	ResponseDate     *time.Time
	AttendanceStatus AttendanceStatus
	LateMinutes      int
	Comment          string
}

// Actor is the already-authenticated user requesting a change, together with
// their membership in the rehearsal's band. Membership is zero for outsiders.
type Actor struct {
	UserID     string
	Membership band.Membership
}

// IsBandAdmin reports whether the actor is an accepted admin of the band.
func (a Actor) IsBandAdmin(bandID string) bool {
	return a.UserID != "" &&
		a.Membership.UserID == a.UserID &&
		a.Membership.BandID == bandID &&
		a.Membership.IsAdmin()
}

// IsPastEnd reports whether now is at or after the rehearsal's end.
func IsPastEnd(r Rehearsal, now time.Time) bool {
	return !now.Before(r.Interval.End())
}

// EffectiveStatus is the status after applying lazy auto-completion.
func EffectiveStatus(r Rehearsal, now time.Time) Status {
	if r.Status == StatusScheduled && IsPastEnd(r, now) {
		return StatusCompleted
	}
	return r.Status
}

// AutoComplete moves a scheduled rehearsal whose end has passed to
// completed. The boolean reports whether anything changed.
func AutoComplete(r Rehearsal, now time.Time) (Rehearsal, bool) {
	if EffectiveStatus(r, now) == r.Status {
		return r, false
	}
	r.Status = StatusCompleted
	return r, true
}

// Authorize checks whether actor may perform action on r. It does not look
// at the rehearsal's state.
func Authorize(actor Actor, r Rehearsal, action Action) error {
	switch action {
	case ActionCancel:
		if actor.IsBandAdmin(r.BandID) || (actor.UserID != "" && actor.UserID == r.CreatedBy) {
			return nil
		}
	case ActionComplete, ActionRecordAttendance:
		if actor.IsBandAdmin(r.BandID) {
			return nil
		}
	case ActionRespond:
		// Ownership of the attendee row is checked by Respond.
		if actor.UserID != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: %s may not %s rehearsal %s", ErrUnauthorizedTransition, actor.UserID, action, r.ID)
}

// Cancel moves a scheduled rehearsal to canceled. Band admins and the
// rehearsal's creator may cancel until the rehearsal ends.
func Cancel(actor Actor, r Rehearsal, now time.Time) (Rehearsal, error) {
	if err := Authorize(actor, r, ActionCancel); err != nil {
		return r, err
	}
	if !CanTransition(r.Status, StatusCanceled) {
		return r, fmt.Errorf("%w: rehearsal %s is %s", ErrInvalidTransition, r.ID, r.Status)
	}
	if IsPastEnd(r, now) {
		return r, fmt.Errorf("%w: rehearsal %s already ended", ErrInvalidTransition, r.ID)
	}
	r.Status = StatusCanceled
	return r, nil
}

// Complete moves a scheduled rehearsal to completed on a band admin's request.
func Complete(actor Actor, r Rehearsal) (Rehearsal, error) {
	if err := Authorize(actor, r, ActionComplete); err != nil {
		return r, err
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return r, fmt.Errorf("%w: rehearsal %s is %s", ErrInvalidTransition, r.ID, r.Status)
	}
	r.Status = StatusCompleted
	return r, nil
}

// Respond records the attendee's own answer while the rehearsal is still
// scheduled. The latest answer wins and refreshes the response date.
func Respond(actor Actor, r Rehearsal, a Attendee, response Response, comment string, now time.Time) (Attendee, error) {
	if err := Authorize(actor, r, ActionRespond); err != nil {
		return a, err
	}
	if actor.UserID != a.UserID {
		return a, fmt.Errorf("%w: %s may not answer for %s", ErrUnauthorizedTransition, actor.UserID, a.UserID)
	}
	if status := EffectiveStatus(r, now); status != StatusScheduled {
		return a, fmt.Errorf("%w: responses closed, rehearsal %s is %s", ErrInvalidTransition, r.ID, status)
	}
	if _, err := ParseResponse(string(response)); err != nil {
		return a, err
	}

	answeredAt := now
	a.Response = response
	a.ResponseDate = &answeredAt
	a.Comment = comment
	return a, nil
}

// RecordAttendance sets an attendee's attendance once the rehearsal has
// completed. Only band admins may do so. lateMinutes must be positive for
// late arrivals and zero otherwise.
func RecordAttendance(actor Actor, r Rehearsal, a Attendee, status AttendanceStatus, lateMinutes int, now time.Time) (Attendee, error) {
	if err := Authorize(actor, r, ActionRecordAttendance); err != nil {
		return a, err
	}
	if current := EffectiveStatus(r, now); current != StatusCompleted {
		return a, fmt.Errorf("%w: attendance locked, rehearsal %s is %s", ErrInvalidTransition, r.ID, current)
	}
	if err := ValidateAttendance(status, lateMinutes); err != nil {
		return a, err
	}

	a.AttendanceStatus = status
	a.LateMinutes = lateMinutes
	return a, nil
}

// ValidateAttendance checks the status and late minutes pairing.
func ValidateAttendance(status AttendanceStatus, lateMinutes int) error {
	if _, err := ParseAttendanceStatus(string(status)); err != nil {
		return err
	}
	switch {
	case lateMinutes < 0:
		return fmt.Errorf("%w: late minutes must not be negative", ErrInvalidAttendanceData)
	case status == AttendanceLate && lateMinutes == 0:
		return fmt.Errorf("%w: late minutes required for late arrivals", ErrInvalidAttendanceData)
	case status != AttendanceLate && lateMinutes != 0:
		return fmt.Errorf("%w: late minutes only apply to late arrivals", ErrInvalidAttendanceData)
	}
	return nil
}
