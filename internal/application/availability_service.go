package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/interval"
)

const availabilityServiceName = "availability"

// AvailabilityService manages a user's own rules and unavailability blocks.
type AvailabilityService struct {
	repo        AvailabilityRepository
	idGenerator func() string
	now         func() time.Time
	logger      *zerolog.Logger
}

// NewAvailabilityService wires dependencies for calendar maintenance.
func NewAvailabilityService(repo AvailabilityRepository, idGenerator func() string, now func() time.Time, logger *zerolog.Logger) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		repo:        repo,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateRule validates and stores a free window for userID.
func (s *AvailabilityService) CreateRule(ctx context.Context, principal Principal, userID string, input AvailabilityRuleInput) (_ AvailabilityRule, err error) {
	if s == nil {
		return AvailabilityRule{}, fmt.Errorf("AvailabilityService is nil")
	}
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "create_rule", map[string]any{"user_id": userID})
	defer func() { logOutcome(logger, err, "availability rule creation") }()

	if err := requireSelf(principal, userID); err != nil {
		return AvailabilityRule{}, err
	}

	rule, vErr := buildRule(input)
	if vErr.HasErrors() {
		return AvailabilityRule{}, vErr
	}
	rule.ID = s.idGenerator()
	rule.UserID = userID
	if err := rule.Validate(); err != nil {
		return AvailabilityRule{}, &ValidationError{FieldErrors: map[string]string{"end_time": err.Error()}}
	}

	at := s.now()
	stored := AvailabilityRule{Rule: rule, CreatedAt: at, UpdatedAt: at}
	if s.repo == nil {
		return stored, nil
	}
	if err := s.repo.CreateAvailabilityRule(ctx, stored); err != nil {
		return AvailabilityRule{}, mapRepoError(err)
	}
	return stored, nil
}

// ListRules returns userID's rules.
func (s *AvailabilityService) ListRules(ctx context.Context, principal Principal, userID string) ([]AvailabilityRule, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	if err := requireSelf(principal, userID); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, nil
	}
	rules, err := s.repo.ListAvailabilityRules(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return rules, nil
}

// DeleteRule removes one of userID's rules.
func (s *AvailabilityService) DeleteRule(ctx context.Context, principal Principal, userID, ruleID string) (err error) {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "delete_rule", map[string]any{
		"user_id": userID,
		"rule_id": ruleID,
	})
	defer func() { logOutcome(logger, err, "availability rule deletion") }()

	if err := requireSelf(principal, userID); err != nil {
		return err
	}
	if s.repo == nil {
		return nil
	}
	return mapRepoError(s.repo.DeleteAvailabilityRule(ctx, userID, ruleID))
}

// CreateUnavailability stores a busy period for userID.
func (s *AvailabilityService) CreateUnavailability(ctx context.Context, principal Principal, userID string, input UnavailabilityInput) (_ Unavailability, err error) {
	if s == nil {
		return Unavailability{}, fmt.Errorf("AvailabilityService is nil")
	}
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "create_unavailability", map[string]any{"user_id": userID})
	defer func() { logOutcome(logger, err, "unavailability creation") }()

	if err := requireSelf(principal, userID); err != nil {
		return Unavailability{}, err
	}
	iv, err := interval.New(input.Start, input.End)
	if err != nil {
		return Unavailability{}, &ValidationError{FieldErrors: map[string]string{"end": "must be after start"}}
	}

	stored := Unavailability{
		Unavailability: availability.Unavailability{
			ID:       s.idGenerator(),
			UserID:   userID,
			Interval: iv,
			Reason:   strings.TrimSpace(input.Reason),
		},
		CreatedAt: s.now(),
	}
	if s.repo == nil {
		return stored, nil
	}
	if err := s.repo.CreateUnavailability(ctx, stored); err != nil {
		return Unavailability{}, mapRepoError(err)
	}
	return stored, nil
}

// ListUnavailabilities returns userID's busy periods overlapping window.
func (s *AvailabilityService) ListUnavailabilities(ctx context.Context, principal Principal, userID string, window interval.Interval) ([]Unavailability, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	if err := requireSelf(principal, userID); err != nil {
		return nil, err
	}
	if !window.Valid() {
		return nil, interval.ErrInvalidInterval
	}
	if s.repo == nil {
		return nil, nil
	}
	blocks, err := s.repo.ListUnavailabilities(ctx, userID, window)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return blocks, nil
}

// DeleteUnavailability removes one of userID's busy periods.
func (s *AvailabilityService) DeleteUnavailability(ctx context.Context, principal Principal, userID, id string) (err error) {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}
	logger := serviceLogger(ctx, s.logger, availabilityServiceName, "delete_unavailability", map[string]any{
		"user_id":           userID,
		"unavailability_id": id,
	})
	defer func() { logOutcome(logger, err, "unavailability deletion") }()

	if err := requireSelf(principal, userID); err != nil {
		return err
	}
	if s.repo == nil {
		return nil
	}
	return mapRepoError(s.repo.DeleteUnavailability(ctx, userID, id))
}

func requireSelf(principal Principal, userID string) error {
	if principal.UserID == "" || principal.UserID != userID {
		return ErrUnauthorized
	}
	return nil
}

func buildRule(input AvailabilityRuleInput) (availability.Rule, *ValidationError) {
	vErr := &ValidationError{}
	rule := availability.Rule{
		DayOfWeek:      time.Weekday(input.DayOfWeek),
		Recurring:      input.Recurring,
		SpecificDate:   input.SpecificDate,
		EffectiveFrom:  input.EffectiveFrom,
		EffectiveUntil: input.EffectiveUntil,
	}

	if input.DayOfWeek < 0 || input.DayOfWeek > 6 {
		vErr.add("day_of_week", "must be between 0 and 6")
	}

	start, err := availability.ParseTimeOfDay(input.StartTime)
	if err != nil {
		vErr.add("start_time", fieldMessage(err))
	}
	end, err := availability.ParseTimeOfDay(input.EndTime)
	if err != nil {
		vErr.add("end_time", fieldMessage(err))
	}
	rule.StartTime, rule.EndTime = start, end
	if !vErr.HasErrors() && !start.Before(end) {
		vErr.add("end_time", "must be after start_time")
	}

	if input.Recurring && input.SpecificDate != nil {
		vErr.add("specific_date", "only applies to non-recurring rules")
	}
	if input.EffectiveFrom != nil && input.EffectiveUntil != nil && input.EffectiveUntil.Before(*input.EffectiveFrom) {
		vErr.add("effective_until", "must not be before effective_from")
	}
	return rule, vErr
}

func fieldMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, availability.ErrInvalidRule) {
		msg = strings.TrimPrefix(msg, availability.ErrInvalidRule.Error()+": ")
	}
	return msg
}
