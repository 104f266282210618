package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/scheduler"
)

type schedulingService interface {
	SuggestSlots(ctx context.Context, params application.SuggestSlotsParams) ([]scheduler.Suggestion, error)
	ValidateSlot(ctx context.Context, params application.ValidateSlotParams) (scheduler.SlotValidation, error)
}

type SchedulingHandler struct {
	service   schedulingService
	responder responder
	logger    *zerolog.Logger
}

func NewSchedulingHandler(service schedulingService, logger *zerolog.Logger) *SchedulingHandler {
	base := defaultLogger(logger)
	return &SchedulingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SchedulingHandler) log(ctx context.Context, operation, bandID string) zerolog.Logger {
	return handlerLogger(ctx, h.logger, "SchedulingHandler", operation).With().Str("band_id", bandID).Logger()
}

func (h *SchedulingHandler) SuggestSlots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req suggestSlotsRequest
	if !h.responder.decode(w, r, &req) {
		return
	}
	window, err := interval.New(req.WindowStart, req.WindowEnd)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	bandID := r.PathValue("id")
	logger := h.log(r.Context(), "SuggestSlots", bandID)

	suggestions, err := h.service.SuggestSlots(r.Context(), application.SuggestSlotsParams{
		Principal: principal,
		BandID:    bandID,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
		Window:    window,
		Quorum:    toQuorum(req.Quorum, req.Roles),
		Limit:     req.Limit,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("slot suggestion failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]suggestionDTO, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionDTO{
			Start:            formatTime(s.Start),
			End:              formatTime(s.End),
			AvailableMembers: nonNil(s.AvailableMembers),
			AvailableCount:   s.AvailableCount,
		})
	}
	logger.Info().Int("result_count", len(out)).Msg("slots suggested")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, suggestSlotsResponse{Suggestions: out})
}

// ValidateSlot answers 200 whether or not the slot has quorum; the body says
// which members are missing.
func (h *SchedulingHandler) ValidateSlot(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req validateSlotRequest
	if !h.responder.decode(w, r, &req) {
		return
	}
	slot, err := interval.New(req.Start, req.End)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	bandID := r.PathValue("id")
	result, err := h.service.ValidateSlot(r.Context(), application.ValidateSlotParams{
		Principal: principal,
		BandID:    bandID,
		Slot:      slot,
		Quorum:    toQuorum(req.Quorum, req.Roles),
	})
	if err != nil {
		logger := h.log(r.Context(), "ValidateSlot", bandID)
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("slot validation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotValidationDTO{
		OK:               result.OK,
		Required:         result.Required,
		AvailableMembers: nonNil(result.AvailableMembers),
		MissingMembers:   nonNil(result.MissingMembers),
	})
}

func toQuorum(count int, roles []string) scheduler.Quorum {
	q := scheduler.Quorum{Count: count}
	for _, role := range roles {
		q.Roles = append(q.Roles, band.Role(role))
	}
	return q
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

type suggestSlotsRequest struct {
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=1440"`
	WindowStart     time.Time `json:"window_start" validate:"required"`
	WindowEnd       time.Time `json:"window_end" validate:"required"`
	Quorum          int       `json:"quorum" validate:"min=0"`
	Roles           []string  `json:"roles" validate:"omitempty,dive,oneof=admin member guest"`
	Limit           int       `json:"limit" validate:"min=0"`
}

type validateSlotRequest struct {
	Start  time.Time `json:"start" validate:"required"`
	End    time.Time `json:"end" validate:"required"`
	Quorum int       `json:"quorum" validate:"min=0"`
	Roles  []string  `json:"roles" validate:"omitempty,dive,oneof=admin member guest"`
}

type suggestSlotsResponse struct {
	Suggestions []suggestionDTO `json:"suggestions"`
}

type suggestionDTO struct {
	Start            string   `json:"start"`
	End              string   `json:"end"`
	AvailableMembers []string `json:"available_members"`
	AvailableCount   int      `json:"available_count"`
}

type slotValidationDTO struct {
	OK               bool     `json:"ok"`
	Required         int      `json:"required"`
	AvailableMembers []string `json:"available_members"`
	MissingMembers   []string `json:"missing_members"`
}
