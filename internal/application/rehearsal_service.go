package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

const rehearsalServiceName = "rehearsal"

const maxRehearsalTitleLength = 200

// RehearsalService orchestrates the rehearsal lifecycle: it loads state,
// applies the pure transition and persists the result with a conditional
// update.
type RehearsalService struct {
	rehearsals  RehearsalRepository
	bands       BandRepository
	users       UserRepository
	events      eventPublisher
	metrics     *Metrics
	idGenerator func() string
	now         func() time.Time
	logger      *zerolog.Logger
}

// NewRehearsalService wires dependencies for rehearsal operations. The
// notifier and metrics are optional.
func NewRehearsalService(rehearsals RehearsalRepository, bands BandRepository, users UserRepository, notifier Notifier, metrics *Metrics, idGenerator func() string, now func() time.Time, logger *zerolog.Logger) *RehearsalService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RehearsalService{
		rehearsals:  rehearsals,
		bands:       bands,
		users:       users,
		events:      eventPublisher{notifier: notifier, metrics: metrics},
		metrics:     metrics,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Create schedules a rehearsal and adds one unset attendee row per accepted
// member. Availability is not re-validated.
func (s *RehearsalService) Create(ctx context.Context, params CreateRehearsalParams) (_ Rehearsal, err error) {
	if s == nil {
		return Rehearsal{}, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "create", map[string]any{
		"band_id": params.BandID,
		"user_id": params.Principal.UserID,
	})
	defer func() { logOutcome(logger, err, "rehearsal creation") }()

	input := params.Input
	vErr := validateRehearsalInput(input)
	if vErr.HasErrors() {
		return Rehearsal{}, vErr
	}
	iv, err := interval.New(input.Start, input.End)
	if err != nil {
		return Rehearsal{}, err
	}

	if s.bands == nil || s.rehearsals == nil {
		return Rehearsal{}, fmt.Errorf("rehearsal repositories not configured")
	}
	if _, err := s.bands.GetBand(ctx, params.BandID); err != nil {
		return Rehearsal{}, mapRepoError(err)
	}
	members, err := s.bands.ListBandMembers(ctx, params.BandID, band.InvitationAccepted)
	if err != nil {
		return Rehearsal{}, mapRepoError(err)
	}
	memberships := toMemberships(members)
	creator, ok := band.Find(memberships, params.Principal.UserID)
	if !ok || !creator.CanScheduleRehearsals() {
		return Rehearsal{}, ErrUnauthorized
	}

	at := s.now()
	created := Rehearsal{
		ID:               s.idGenerator(),
		BandID:           params.BandID,
		Title:            strings.TrimSpace(input.Title),
		Description:      trimmedOrNil(input.Description),
		Location:         trimmedOrNil(input.Location),
		Start:            iv.Start(),
		End:              iv.End(),
		Status:           lifecycle.StatusScheduled,
		CreatedBy:        params.Principal.UserID,
		RecurringPattern: input.RecurringPattern,
		CreatedAt:        at,
		UpdatedAt:        at,
	}

	accepted := band.Accepted(memberships)
	attendees := make([]lifecycle.Attendee, 0, len(accepted))
	for _, m := range accepted {
		attendees = append(attendees, lifecycle.Attendee{RehearsalID: created.ID, UserID: m.UserID})
	}

	if err := s.rehearsals.CreateRehearsal(ctx, created, attendees); err != nil {
		return Rehearsal{}, mapRepoError(err)
	}
	logger.Debug().Str("rehearsal_id", created.ID).Int("attendees", len(attendees)).Msg("rehearsal stored")

	s.events.publish(ctx, logger, Event{
		Type:        EventRehearsalCreated,
		BandID:      created.BandID,
		RehearsalID: created.ID,
		UserID:      params.Principal.UserID,
		OccurredAt:  at,
	})
	return created, nil
}

// Get returns a rehearsal visible to band members. A scheduled rehearsal
// whose end has passed is reported, and persisted, as completed.
func (s *RehearsalService) Get(ctx context.Context, principal Principal, id string) (Rehearsal, error) {
	if s == nil {
		return Rehearsal{}, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "get", map[string]any{"rehearsal_id": id})

	r, actor, err := s.load(ctx, principal, id)
	if err != nil {
		return Rehearsal{}, err
	}
	if actor.Membership.UserID == "" {
		return Rehearsal{}, ErrUnauthorized
	}
	// Reads report the effective status even when it cannot be written back.
	settled, _ := s.settle(ctx, logger, r)
	return settled, nil
}

// List returns band rehearsals ordered by start with the effective status
// applied. Only accepted members may list.
func (s *RehearsalService) List(ctx context.Context, principal Principal, query RehearsalQuery) ([]Rehearsal, error) {
	if s == nil {
		return nil, fmt.Errorf("RehearsalService is nil")
	}
	if query.BandID == "" {
		return nil, &ValidationError{FieldErrors: map[string]string{"band_id": "is required"}}
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, &ValidationError{FieldErrors: map[string]string{"status": "unknown rehearsal status"}}
	}
	if _, err := s.membership(ctx, query.BandID, principal.UserID); err != nil {
		return nil, err
	}
	if s.rehearsals == nil {
		return nil, nil
	}

	stored := query
	if query.Status == lifecycle.StatusCompleted {
		// Elapsed scheduled rehearsals count as completed.
		stored.Status = ""
	}
	rows, err := s.rehearsals.ListRehearsals(ctx, stored)
	if err != nil {
		return nil, mapRepoError(err)
	}
	now := s.now()
	out := make([]Rehearsal, 0, len(rows))
	for _, r := range rows {
		view, err := r.Lifecycle()
		if err != nil {
			return nil, err
		}
		r.Status = lifecycle.EffectiveStatus(view, now)
		if query.Status != "" && r.Status != query.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Cancel moves a scheduled rehearsal to canceled. Band admins and the
// creator may cancel before the rehearsal ends.
func (s *RehearsalService) Cancel(ctx context.Context, principal Principal, id string) (_ Rehearsal, err error) {
	if s == nil {
		return Rehearsal{}, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "cancel", map[string]any{
		"rehearsal_id": id,
		"user_id":      principal.UserID,
	})
	defer func() { logOutcome(logger, err, "rehearsal cancellation") }()

	r, actor, err := s.load(ctx, principal, id)
	if err != nil {
		return Rehearsal{}, err
	}
	view, err := r.Lifecycle()
	if err != nil {
		return Rehearsal{}, err
	}
	at := s.now()
	next, err := lifecycle.Cancel(actor, view, at)
	if err != nil {
		return Rehearsal{}, err
	}
	updated, err := s.transition(ctx, r, next.Status, at)
	if err != nil {
		return Rehearsal{}, err
	}

	s.events.publish(ctx, logger, Event{
		Type:        EventRehearsalCanceled,
		BandID:      updated.BandID,
		RehearsalID: updated.ID,
		UserID:      principal.UserID,
		OccurredAt:  at,
	})
	return updated, nil
}

// Complete moves a scheduled rehearsal to completed on a band admin's request.
func (s *RehearsalService) Complete(ctx context.Context, principal Principal, id string) (_ Rehearsal, err error) {
	if s == nil {
		return Rehearsal{}, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "complete", map[string]any{
		"rehearsal_id": id,
		"user_id":      principal.UserID,
	})
	defer func() { logOutcome(logger, err, "rehearsal completion") }()

	r, actor, err := s.load(ctx, principal, id)
	if err != nil {
		return Rehearsal{}, err
	}
	view, err := r.Lifecycle()
	if err != nil {
		return Rehearsal{}, err
	}
	next, err := lifecycle.Complete(actor, view)
	if err != nil {
		return Rehearsal{}, err
	}
	at := s.now()
	updated, err := s.transition(ctx, r, next.Status, at)
	if err != nil {
		return Rehearsal{}, err
	}

	s.events.publish(ctx, logger, Event{
		Type:        EventRehearsalCompleted,
		BandID:      updated.BandID,
		RehearsalID: updated.ID,
		UserID:      principal.UserID,
		OccurredAt:  at,
	})
	return updated, nil
}

// Respond records the principal's own answer while the rehearsal is scheduled.
func (s *RehearsalService) Respond(ctx context.Context, params RespondParams) (_ lifecycle.Attendee, err error) {
	if s == nil {
		return lifecycle.Attendee{}, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "respond", map[string]any{
		"rehearsal_id": params.RehearsalID,
		"user_id":      params.Principal.UserID,
		"response":     params.Response,
	})
	defer func() { logOutcome(logger, err, "attendee response") }()

	r, actor, err := s.load(ctx, params.Principal, params.RehearsalID)
	if err != nil {
		return lifecycle.Attendee{}, err
	}
	attendee, err := s.attendee(ctx, r.ID, params.Principal.UserID)
	if err != nil {
		return lifecycle.Attendee{}, err
	}

	view, err := r.Lifecycle()
	if err != nil {
		return lifecycle.Attendee{}, err
	}
	at := s.now()
	updated, err := lifecycle.Respond(actor, view, attendee, lifecycle.Response(params.Response), strings.TrimSpace(params.Comment), at)
	if err != nil {
		return lifecycle.Attendee{}, err
	}
	if err := s.rehearsals.SaveAttendee(ctx, updated, at); err != nil {
		return lifecycle.Attendee{}, mapRepoError(err)
	}

	s.events.publish(ctx, logger, Event{
		Type:        EventAttendeeResponseChanged,
		BandID:      r.BandID,
		RehearsalID: r.ID,
		UserID:      updated.UserID,
		OccurredAt:  at,
	})
	return updated, nil
}

// RecordAttendance stores a band admin's attendance entry for one attendee
// once the rehearsal has completed. A scheduled rehearsal past its end is
// completed first.
func (s *RehearsalService) RecordAttendance(ctx context.Context, params RecordAttendanceParams) (_ lifecycle.Attendee, err error) {
	if s == nil {
		return lifecycle.Attendee{}, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "record_attendance", map[string]any{
		"rehearsal_id": params.RehearsalID,
		"user_id":      params.Principal.UserID,
		"attendee_id":  params.UserID,
	})
	defer func() { logOutcome(logger, err, "attendance recording") }()

	r, actor, err := s.load(ctx, params.Principal, params.RehearsalID)
	if err != nil {
		return lifecycle.Attendee{}, err
	}
	view, err := r.Lifecycle()
	if err != nil {
		return lifecycle.Attendee{}, err
	}
	if err := lifecycle.Authorize(actor, view, lifecycle.ActionRecordAttendance); err != nil {
		return lifecycle.Attendee{}, err
	}
	attendee, err := s.rehearsals.GetAttendee(ctx, r.ID, params.UserID)
	if err != nil {
		return lifecycle.Attendee{}, mapRepoError(err)
	}

	at := s.now()
	updated, err := lifecycle.RecordAttendance(actor, view, attendee, lifecycle.AttendanceStatus(params.AttendanceStatus), params.LateMinutes, at)
	if err != nil {
		return lifecycle.Attendee{}, err
	}
	// Attendance belongs to a completed rehearsal, so the completion must be
	// stored before the row is.
	if r, err = s.settle(ctx, logger, r); err != nil {
		return lifecycle.Attendee{}, err
	}

	if err := s.rehearsals.SaveAttendee(ctx, updated, at); err != nil {
		return lifecycle.Attendee{}, mapRepoError(err)
	}

	s.events.publish(ctx, logger, Event{
		Type:        EventAttendeeAttendanceRecorded,
		BandID:      r.BandID,
		RehearsalID: r.ID,
		UserID:      updated.UserID,
		OccurredAt:  at,
	})
	return updated, nil
}

// ListAttendees returns the rehearsal's attendee rows to band members.
func (s *RehearsalService) ListAttendees(ctx context.Context, principal Principal, id string) ([]lifecycle.Attendee, error) {
	if s == nil {
		return nil, fmt.Errorf("RehearsalService is nil")
	}
	_, actor, err := s.load(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if actor.Membership.UserID == "" {
		return nil, ErrUnauthorized
	}
	attendees, err := s.rehearsals.ListAttendees(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return attendees, nil
}

// AttendanceSheet gathers a rehearsal, its attendee rows and display names
// for export. Only band admins may export.
func (s *RehearsalService) AttendanceSheet(ctx context.Context, principal Principal, id string) (AttendanceSheet, error) {
	if s == nil {
		return AttendanceSheet{}, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "attendance_sheet", map[string]any{"rehearsal_id": id})

	r, actor, err := s.load(ctx, principal, id)
	if err != nil {
		return AttendanceSheet{}, err
	}
	if !actor.IsBandAdmin(r.BandID) {
		return AttendanceSheet{}, ErrUnauthorized
	}
	if r, err = s.settle(ctx, logger, r); err != nil {
		return AttendanceSheet{}, err
	}

	attendees, err := s.rehearsals.ListAttendees(ctx, id)
	if err != nil {
		return AttendanceSheet{}, mapRepoError(err)
	}
	names := make(map[string]string, len(attendees))
	if s.users != nil {
		for _, a := range attendees {
			user, err := s.users.GetUser(ctx, a.UserID)
			if err != nil {
				return AttendanceSheet{}, mapRepoError(err)
			}
			names[a.UserID] = user.DisplayName
		}
	}
	return AttendanceSheet{Rehearsal: r, Attendees: attendees, DisplayNames: names}, nil
}

// SweepElapsed completes every scheduled rehearsal whose end has passed and
// returns how many it moved. Rehearsals changed concurrently are skipped.
func (s *RehearsalService) SweepElapsed(ctx context.Context) (_ int, err error) {
	if s == nil {
		return 0, fmt.Errorf("RehearsalService is nil")
	}
	logger := serviceLogger(ctx, s.logger, rehearsalServiceName, "sweep_elapsed", nil)

	at := s.now()
	due, err := s.rehearsals.ListRehearsals(ctx, RehearsalQuery{Status: lifecycle.StatusScheduled, EndsBefore: &at})
	if err != nil {
		err = mapRepoError(err)
		logOutcome(logger, err, "auto-completion sweep")
		return 0, err
	}

	completed := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		view, err := r.Lifecycle()
		if err != nil {
			logger.Warn().Err(err).Str("rehearsal_id", r.ID).Msg("skipping malformed rehearsal")
			continue
		}
		next, changed := lifecycle.AutoComplete(view, at)
		if !changed {
			continue
		}
		if _, err := s.transition(ctx, r, next.Status, at); err != nil {
			if errors.Is(err, ErrStaleState) {
				continue
			}
			logOutcome(logger, err, "auto-completion sweep")
			return completed, err
		}
		completed++
		s.events.publish(ctx, logger, Event{
			Type:        EventRehearsalCompleted,
			BandID:      r.BandID,
			RehearsalID: r.ID,
			OccurredAt:  at,
		})
	}
	if completed > 0 {
		logger.Info().Int("completed", completed).Msg("elapsed rehearsals completed")
	}
	return completed, nil
}

// load fetches the rehearsal and builds the lifecycle actor for principal.
// Outsiders get an actor with a zero membership.
func (s *RehearsalService) load(ctx context.Context, principal Principal, id string) (Rehearsal, lifecycle.Actor, error) {
	if s.rehearsals == nil {
		return Rehearsal{}, lifecycle.Actor{}, ErrNotFound
	}
	r, err := s.rehearsals.GetRehearsal(ctx, id)
	if err != nil {
		return Rehearsal{}, lifecycle.Actor{}, mapRepoError(err)
	}

	actor := lifecycle.Actor{UserID: principal.UserID}
	if principal.UserID == "" || s.bands == nil {
		return r, actor, nil
	}
	member, err := s.bands.GetBandMember(ctx, r.BandID, principal.UserID)
	switch {
	case err == nil:
		if member.IsAccepted() {
			actor.Membership = member.Membership
		}
	case errors.Is(mapRepoError(err), ErrNotFound):
	default:
		return Rehearsal{}, lifecycle.Actor{}, mapRepoError(err)
	}
	return r, actor, nil
}

func (s *RehearsalService) membership(ctx context.Context, bandID, userID string) (band.Membership, error) {
	if s.bands == nil || userID == "" {
		return band.Membership{}, ErrUnauthorized
	}
	member, err := s.bands.GetBandMember(ctx, bandID, userID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return band.Membership{}, ErrUnauthorized
		}
		return band.Membership{}, mapRepoError(err)
	}
	if !member.IsAccepted() {
		return band.Membership{}, ErrUnauthorized
	}
	return member.Membership, nil
}

func (s *RehearsalService) attendee(ctx context.Context, rehearsalID, userID string) (lifecycle.Attendee, error) {
	a, err := s.rehearsals.GetAttendee(ctx, rehearsalID, userID)
	if err == nil {
		return a, nil
	}
	if errors.Is(mapRepoError(err), ErrNotFound) {
		// Without a row the principal answers for nobody.
		return lifecycle.Attendee{RehearsalID: rehearsalID}, nil
	}
	return lifecycle.Attendee{}, mapRepoError(err)
}

// transition persists a status change with a compare-and-set on r.Status.
func (s *RehearsalService) transition(ctx context.Context, r Rehearsal, next lifecycle.Status, at time.Time) (Rehearsal, error) {
	err := mapRepoError(s.rehearsals.UpdateRehearsalStatus(ctx, r.ID, r.Status, next, at))
	s.metrics.transition(next, err)
	if err != nil {
		return Rehearsal{}, err
	}
	r.Status = next
	r.UpdatedAt = at
	return r, nil
}

// settle applies lazy auto-completion and writes it back. Losing the write
// to a concurrent change leaves the stored state authoritative. Any other
// write failure is returned along with r carrying its effective status.
func (s *RehearsalService) settle(ctx context.Context, logger zerolog.Logger, r Rehearsal) (Rehearsal, error) {
	view, err := r.Lifecycle()
	if err != nil {
		return r, err
	}
	now := s.now()
	next, changed := lifecycle.AutoComplete(view, now)
	if !changed {
		return r, nil
	}
	updated, err := s.transition(ctx, r, next.Status, now)
	switch {
	case err == nil:
		s.events.publish(ctx, logger, Event{
			Type:        EventRehearsalCompleted,
			BandID:      r.BandID,
			RehearsalID: r.ID,
			OccurredAt:  now,
		})
		return updated, nil
	case errors.Is(err, ErrStaleState):
		if fresh, getErr := s.rehearsals.GetRehearsal(ctx, r.ID); getErr == nil {
			return fresh, nil
		}
		r.Status = next.Status
		return r, nil
	default:
		logger.Warn().Err(err).Str("rehearsal_id", r.ID).Msg("lazy completion not persisted")
		r.Status = next.Status
		return r, err
	}
}

func validateRehearsalInput(input RehearsalInput) *ValidationError {
	vErr := &ValidationError{}
	title := strings.TrimSpace(input.Title)
	switch {
	case title == "":
		vErr.add("title", "is required")
	case utf8.RuneCountInString(title) > maxRehearsalTitleLength:
		vErr.add("title", fmt.Sprintf("must be at most %d characters", maxRehearsalTitleLength))
	}
	if input.Start.IsZero() {
		vErr.add("start", "is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "is required")
	}
	if len(input.RecurringPattern) > 0 && !json.Valid(input.RecurringPattern) {
		vErr.add("recurring_pattern", "must be valid JSON")
	}
	return vErr
}

func toMemberships(members []BandMember) []band.Membership {
	out := make([]band.Membership, 0, len(members))
	for _, m := range members {
		out = append(out, m.Membership)
	}
	return out
}
