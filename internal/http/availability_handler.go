package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/interval"
)

const dateLayout = "2006-01-02"

type availabilityService interface {
	CreateRule(ctx context.Context, principal application.Principal, userID string, input application.AvailabilityRuleInput) (application.AvailabilityRule, error)
	ListRules(ctx context.Context, principal application.Principal, userID string) ([]application.AvailabilityRule, error)
	DeleteRule(ctx context.Context, principal application.Principal, userID, ruleID string) error
	CreateUnavailability(ctx context.Context, principal application.Principal, userID string, input application.UnavailabilityInput) (application.Unavailability, error)
	ListUnavailabilities(ctx context.Context, principal application.Principal, userID string, window interval.Interval) ([]application.Unavailability, error)
	DeleteUnavailability(ctx context.Context, principal application.Principal, userID, id string) error
}

type freeIntervalFinder interface {
	FreeIntervals(ctx context.Context, principal application.Principal, userID string, window interval.Interval) ([]interval.Interval, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	free      freeIntervalFinder
	responder responder
	logger    *zerolog.Logger
}

func NewAvailabilityHandler(service availabilityService, free freeIntervalFinder, logger *zerolog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, free: free, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation, userID string) zerolog.Logger {
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation).With().Str("user_id", userID).Logger()
}

func (h *AvailabilityHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req availabilityRuleRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "CreateRule", userID)

	rule, err := h.service.CreateRule(r.Context(), principal, userID, req.toInput())
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("availability rule creation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("rule_id", rule.ID).Msg("availability rule created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, ruleResponse{Rule: toRuleDTO(rule)})
}

func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rules, err := h.service.ListRules(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]ruleDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleDTO(rule))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRulesResponse{Rules: out})
}

func (h *AvailabilityHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "DeleteRule", userID)
	if err := h.service.DeleteRule(r.Context(), principal, userID, r.PathValue("ruleID")); err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("availability rule delete failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Msg("availability rule deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) CreateUnavailability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req unavailabilityRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "CreateUnavailability", userID)

	u, err := h.service.CreateUnavailability(r.Context(), principal, userID, application.UnavailabilityInput{
		Start:  req.Start,
		End:    req.End,
		Reason: req.Reason,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("unavailability creation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("unavailability_id", u.ID).Msg("unavailability created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, unavailabilityResponse{Unavailability: toUnavailabilityDTO(u)})
}

// ListUnavailabilities requires ?start=&end= in RFC 3339.
func (h *AvailabilityHandler) ListUnavailabilities(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	window, vErr := parseWindow(r.URL.Query(), "start", "end")
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	items, err := h.service.ListUnavailabilities(r.Context(), principal, r.PathValue("id"), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]unavailabilityDTO, 0, len(items))
	for _, u := range items {
		out = append(out, toUnavailabilityDTO(u))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUnavailabilitiesResponse{Unavailabilities: out})
}

func (h *AvailabilityHandler) DeleteUnavailability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "DeleteUnavailability", userID)
	if err := h.service.DeleteUnavailability(r.Context(), principal, userID, r.PathValue("unavailabilityID")); err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("unavailability delete failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Msg("unavailability deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// FreeIntervals requires ?start=&end= in RFC 3339.
func (h *AvailabilityHandler) FreeIntervals(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.free == nil {
		notConfigured(w)
		return
	}

	window, vErr := parseWindow(r.URL.Query(), "start", "end")
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	free, err := h.free.FreeIntervals(r.Context(), principal, r.PathValue("id"), window)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]intervalDTO, 0, len(free))
	for _, iv := range free {
		out = append(out, toIntervalDTO(iv))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, freeIntervalsResponse{Intervals: out})
}

type availabilityRuleRequest struct {
	DayOfWeek      *int    `json:"day_of_week" validate:"required,min=0,max=6"`
	StartTime      string  `json:"start_time" validate:"required,datetime=15:04"`
	EndTime        string  `json:"end_time" validate:"required"`
	Recurring      *bool   `json:"recurring"`
	SpecificDate   *string `json:"specific_date" validate:"omitempty,datetime=2006-01-02"`
	EffectiveFrom  *string `json:"effective_from" validate:"omitempty,datetime=2006-01-02"`
	EffectiveUntil *string `json:"effective_until" validate:"omitempty,datetime=2006-01-02"`
}

// toInput converts the request; date strings were checked by validation.
// Recurring defaults to true.
func (req availabilityRuleRequest) toInput() application.AvailabilityRuleInput {
	recurring := true
	if req.Recurring != nil {
		recurring = *req.Recurring
	}
	return application.AvailabilityRuleInput{
		DayOfWeek:      *req.DayOfWeek,
		StartTime:      strings.TrimSpace(req.StartTime),
		EndTime:        strings.TrimSpace(req.EndTime),
		Recurring:      recurring,
		SpecificDate:   parseDate(req.SpecificDate),
		EffectiveFrom:  parseDate(req.EffectiveFrom),
		EffectiveUntil: parseDate(req.EffectiveUntil),
	}
}

type unavailabilityRequest struct {
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
	Reason string    `json:"reason" validate:"max=500"`
}

type ruleResponse struct {
	Rule ruleDTO `json:"rule"`
}

type listRulesResponse struct {
	Rules []ruleDTO `json:"rules"`
}

type unavailabilityResponse struct {
	Unavailability unavailabilityDTO `json:"unavailability"`
}

type listUnavailabilitiesResponse struct {
	Unavailabilities []unavailabilityDTO `json:"unavailabilities"`
}

type freeIntervalsResponse struct {
	Intervals []intervalDTO `json:"intervals"`
}

type ruleDTO struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	DayOfWeek      int     `json:"day_of_week"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Recurring      bool    `json:"recurring"`
	SpecificDate   *string `json:"specific_date,omitempty"`
	EffectiveFrom  *string `json:"effective_from,omitempty"`
	EffectiveUntil *string `json:"effective_until,omitempty"`
}

type unavailabilityDTO struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason,omitempty"`
}

type intervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func toRuleDTO(rule application.AvailabilityRule) ruleDTO {
	return ruleDTO{
		ID:             rule.ID,
		UserID:         rule.UserID,
		DayOfWeek:      int(rule.DayOfWeek),
		StartTime:      rule.StartTime.String(),
		EndTime:        rule.EndTime.String(),
		Recurring:      rule.Recurring,
		SpecificDate:   formatDate(rule.SpecificDate),
		EffectiveFrom:  formatDate(rule.EffectiveFrom),
		EffectiveUntil: formatDate(rule.EffectiveUntil),
	}
}

func toUnavailabilityDTO(u application.Unavailability) unavailabilityDTO {
	return unavailabilityDTO{
		ID:     u.ID,
		UserID: u.UserID,
		Start:  formatTime(u.Interval.Start()),
		End:    formatTime(u.Interval.End()),
		Reason: u.Reason,
	}
}

func toIntervalDTO(iv interval.Interval) intervalDTO {
	return intervalDTO{Start: formatTime(iv.Start()), End: formatTime(iv.End())}
}

func parseDate(value *string) *time.Time {
	if value == nil {
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*value))
	if err != nil {
		return nil
	}
	return &t
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// parseWindow reads a required RFC 3339 [start, end) pair from query.
func parseWindow(query url.Values, startKey, endKey string) (interval.Interval, *application.ValidationError) {
	vErr := &application.ValidationError{}
	start, ok := parseQueryTime(query, startKey, vErr)
	end, ok2 := parseQueryTime(query, endKey, vErr)
	if !ok || !ok2 {
		return interval.Interval{}, vErr
	}
	window, err := interval.New(start, end)
	if err != nil {
		vErr.FieldErrors = map[string]string{endKey: "must be after " + startKey}
		return interval.Interval{}, vErr
	}
	return window, nil
}

func parseQueryTime(query url.Values, key string, vErr *application.ValidationError) (time.Time, bool) {
	value := strings.TrimSpace(query.Get(key))
	if value == "" {
		setFieldError(vErr, key, "is required")
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		setFieldError(vErr, key, "must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

func setFieldError(vErr *application.ValidationError, field, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = make(map[string]string)
	}
	vErr.FieldErrors[field] = message
}
