package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/scheduler"
)

const schedulingServiceName = "scheduling"

// DefaultSuggestionLimit caps suggestion lists when neither the caller nor
// the service configuration names a limit.
const DefaultSuggestionLimit = 20

// SchedulingService loads calendars for a band and runs the advisor on them.
type SchedulingService struct {
	bands        BandRepository
	availability AvailabilityRepository
	engine       *availability.Engine
	advisor      *scheduler.Advisor
	defaultLimit int
	metrics      *Metrics
	logger       *zerolog.Logger
}

// NewSchedulingService wires dependencies for slot suggestion. A nil engine
// uses UTC and the default lookahead; a non-positive limit uses DefaultSuggestionLimit.
func NewSchedulingService(bands BandRepository, avail AvailabilityRepository, engine *availability.Engine, defaultLimit int, metrics *Metrics, logger *zerolog.Logger) *SchedulingService {
	if engine == nil {
		engine = availability.NewEngine(nil, 0)
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultSuggestionLimit
	}
	return &SchedulingService{
		bands:        bands,
		availability: avail,
		engine:       engine,
		advisor:      scheduler.NewAdvisor(engine),
		defaultLimit: defaultLimit,
		metrics:      metrics,
		logger:       defaultLogger(logger),
	}
}

// SuggestSlots ranks start times inside the window where the quorum of
// accepted members is free for the requested duration. Only accepted band
// members may ask.
func (s *SchedulingService) SuggestSlots(ctx context.Context, params SuggestSlotsParams) (_ []scheduler.Suggestion, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "suggest_slots", map[string]any{
		"band_id": params.BandID,
		"user_id": params.Principal.UserID,
	})
	defer func() { logOutcome(logger, err, "slot suggestion") }()

	vErr := &ValidationError{}
	if params.Duration <= 0 {
		vErr.add("duration", "must be positive")
	}
	if !params.Window.Valid() {
		vErr.add("window", "start must be before end")
	}
	if params.Quorum.Count < 0 {
		vErr.add("quorum", "must not be negative")
	}
	if params.Limit < 0 {
		vErr.add("limit", "must not be negative")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	if err := s.engine.CheckWindow(params.Window); err != nil {
		return nil, err
	}

	members, err := s.loadMembers(ctx, params.Principal, params.BandID, params.Window)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	suggestions, err := s.advisor.SuggestSlots(members, params.Duration, params.Window, params.Quorum)
	s.metrics.observeSlots("suggest", started)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	suggestions = scheduler.Limit(suggestions, limit)
	s.metrics.suggestionsServed(len(suggestions))
	logger.Debug().Int("suggestions", len(suggestions)).Msg("slots ranked")
	return suggestions, nil
}

// ValidateSlot reports which accepted members can and cannot make the slot.
func (s *SchedulingService) ValidateSlot(ctx context.Context, params ValidateSlotParams) (_ scheduler.SlotValidation, err error) {
	if s == nil {
		return scheduler.SlotValidation{}, fmt.Errorf("SchedulingService is nil")
	}
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "validate_slot", map[string]any{
		"band_id": params.BandID,
		"user_id": params.Principal.UserID,
	})
	defer func() { logOutcome(logger, err, "slot validation") }()

	if !params.Slot.Valid() {
		return scheduler.SlotValidation{}, interval.ErrInvalidInterval
	}
	if params.Quorum.Count < 0 {
		return scheduler.SlotValidation{}, &ValidationError{FieldErrors: map[string]string{"quorum": "must not be negative"}}
	}
	if err := s.engine.CheckWindow(params.Slot); err != nil {
		return scheduler.SlotValidation{}, err
	}

	members, err := s.loadMembers(ctx, params.Principal, params.BandID, params.Slot)
	if err != nil {
		return scheduler.SlotValidation{}, err
	}

	started := time.Now()
	result, err := s.advisor.ValidateSlot(members, params.Slot, params.Quorum)
	s.metrics.observeSlots("validate", started)
	if err != nil {
		return scheduler.SlotValidation{}, err
	}
	return result, nil
}

// FreeIntervals returns the principal's own free time inside window.
func (s *SchedulingService) FreeIntervals(ctx context.Context, principal Principal, userID string, window interval.Interval) (_ []interval.Interval, err error) {
	if s == nil {
		return nil, fmt.Errorf("SchedulingService is nil")
	}
	logger := serviceLogger(ctx, s.logger, schedulingServiceName, "free_intervals", map[string]any{
		"user_id": userID,
	})
	defer func() { logOutcome(logger, err, "free interval lookup") }()

	if principal.UserID == "" || principal.UserID != userID {
		return nil, ErrUnauthorized
	}
	if !window.Valid() {
		return nil, interval.ErrInvalidInterval
	}
	if err := s.engine.CheckWindow(window); err != nil {
		return nil, err
	}

	cal, err := s.loadCalendar(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	return s.engine.FreeIntervals(cal, window)
}

func (s *SchedulingService) loadMembers(ctx context.Context, principal Principal, bandID string, window interval.Interval) ([]scheduler.Member, error) {
	if s.bands == nil {
		return nil, fmt.Errorf("band repository not configured")
	}
	rows, err := s.bands.ListBandMembers(ctx, bandID, band.InvitationAccepted)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if len(rows) == 0 {
		if _, err := s.bands.GetBand(ctx, bandID); err != nil {
			return nil, mapRepoError(err)
		}
	}

	memberships := make([]band.Membership, 0, len(rows))
	for _, row := range rows {
		memberships = append(memberships, row.Membership)
	}
	if m, ok := band.Find(memberships, principal.UserID); !ok || !m.IsAccepted() {
		return nil, ErrUnauthorized
	}

	members := make([]scheduler.Member, 0, len(memberships))
	for _, m := range memberships {
		cal, err := s.loadCalendar(ctx, m.UserID, window)
		if err != nil {
			return nil, err
		}
		members = append(members, scheduler.Member{Membership: m, Calendar: cal})
	}
	return members, nil
}

func (s *SchedulingService) loadCalendar(ctx context.Context, userID string, window interval.Interval) (availability.Calendar, error) {
	cal := availability.Calendar{UserID: userID}
	if s.availability == nil {
		return cal, nil
	}

	rules, err := s.availability.ListAvailabilityRules(ctx, userID)
	if err != nil {
		return cal, mapRepoError(err)
	}
	for _, r := range rules {
		cal.Rules = append(cal.Rules, r.Rule)
	}

	blocks, err := s.availability.ListUnavailabilities(ctx, userID, window)
	if err != nil {
		return cal, mapRepoError(err)
	}
	for _, u := range blocks {
		cal.Unavailabilities = append(cal.Unavailabilities, u.Unavailability)
	}
	return cal, nil
}
