package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/report"
)

type rehearsalService interface {
	Create(ctx context.Context, params application.CreateRehearsalParams) (application.Rehearsal, error)
	Get(ctx context.Context, principal application.Principal, id string) (application.Rehearsal, error)
	List(ctx context.Context, principal application.Principal, query application.RehearsalQuery) ([]application.Rehearsal, error)
	Cancel(ctx context.Context, principal application.Principal, id string) (application.Rehearsal, error)
	Complete(ctx context.Context, principal application.Principal, id string) (application.Rehearsal, error)
	Respond(ctx context.Context, params application.RespondParams) (lifecycle.Attendee, error)
	RecordAttendance(ctx context.Context, params application.RecordAttendanceParams) (lifecycle.Attendee, error)
	ListAttendees(ctx context.Context, principal application.Principal, id string) ([]lifecycle.Attendee, error)
	AttendanceSheet(ctx context.Context, principal application.Principal, id string) (application.AttendanceSheet, error)
}

type RehearsalHandler struct {
	service   rehearsalService
	responder responder
	logger    *zerolog.Logger
}

func NewRehearsalHandler(service rehearsalService, logger *zerolog.Logger) *RehearsalHandler {
	base := defaultLogger(logger)
	return &RehearsalHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RehearsalHandler) log(ctx context.Context, operation, rehearsalID string) zerolog.Logger {
	logger := handlerLogger(ctx, h.logger, "RehearsalHandler", operation)
	if rehearsalID != "" {
		logger = logger.With().Str("rehearsal_id", rehearsalID).Logger()
	}
	return logger
}

func (h *RehearsalHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req rehearsalRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	bandID := r.PathValue("id")
	logger := h.log(r.Context(), "Create", "").With().Str("band_id", bandID).Logger()

	created, err := h.service.Create(r.Context(), application.CreateRehearsalParams{
		Principal: principal,
		BandID:    bandID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("rehearsal creation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("rehearsal_id", created.ID).Msg("rehearsal created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, rehearsalResponse{Rehearsal: toRehearsalDTO(created)})
}

func (h *RehearsalHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rehearsal, err := h.service.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, rehearsalResponse{Rehearsal: toRehearsalDTO(rehearsal)})
}

// List serves GET /bands/{id}/rehearsals with optional status, starts_after
// and ends_before filters.
func (h *RehearsalHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	query, vErr := buildRehearsalQuery(r)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	rehearsals, err := h.service.List(r.Context(), principal, query)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]rehearsalDTO, 0, len(rehearsals))
	for _, item := range rehearsals {
		out = append(out, toRehearsalDTO(item))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRehearsalsResponse{Rehearsals: out})
}

func (h *RehearsalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}
	h.transition(w, r, "Cancel", h.service.Cancel)
}

func (h *RehearsalHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}
	h.transition(w, r, "Complete", h.service.Complete)
}

func (h *RehearsalHandler) transition(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, application.Principal, string) (application.Rehearsal, error)) {
	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	logger := h.log(r.Context(), operation, id)

	rehearsal, err := apply(r.Context(), principal, id)
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("rehearsal transition failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("status", string(rehearsal.Status)).Msg("rehearsal transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, rehearsalResponse{Rehearsal: toRehearsalDTO(rehearsal)})
}

// Respond records the acting user's answer for the rehearsal.
func (h *RehearsalHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req respondRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	logger := h.log(r.Context(), "Respond", id)

	attendee, err := h.service.Respond(r.Context(), application.RespondParams{
		Principal:   principal,
		RehearsalID: id,
		Response:    req.Response,
		Comment:     req.Comment,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("response failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("response", string(attendee.Response)).Msg("response recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendeeResponse{Attendee: toAttendeeDTO(attendee)})
}

func (h *RehearsalHandler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req attendanceRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	userID := r.PathValue("userID")
	logger := h.log(r.Context(), "RecordAttendance", id).With().Str("user_id", userID).Logger()

	attendee, err := h.service.RecordAttendance(r.Context(), application.RecordAttendanceParams{
		Principal:        principal,
		RehearsalID:      id,
		UserID:           userID,
		AttendanceStatus: req.AttendanceStatus,
		LateMinutes:      req.LateMinutes,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("attendance recording failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("attendance_status", string(attendee.AttendanceStatus)).Msg("attendance recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendeeResponse{Attendee: toAttendeeDTO(attendee)})
}

func (h *RehearsalHandler) ListAttendees(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	attendees, err := h.service.ListAttendees(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]attendeeDTO, 0, len(attendees))
	for _, a := range attendees {
		out = append(out, toAttendeeDTO(a))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAttendeesResponse{Attendees: out})
}

// AttendanceWorkbook streams the attendance sheet as an xlsx download.
func (h *RehearsalHandler) AttendanceWorkbook(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	sheet, err := h.service.AttendanceSheet(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteAttendance(&buf, sheet); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="attendance-`+id+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger := h.log(r.Context(), "AttendanceWorkbook", id)
		logger.Warn().Err(err).Msg("failed to stream workbook")
	}
}

func buildRehearsalQuery(r *http.Request) (application.RehearsalQuery, *application.ValidationError) {
	values := r.URL.Query()
	query := application.RehearsalQuery{
		BandID: r.PathValue("id"),
		Status: lifecycle.Status(strings.TrimSpace(values.Get("status"))),
	}

	vErr := &application.ValidationError{}
	for key, dst := range map[string]**time.Time{
		"starts_after": &query.StartsAfter,
		"ends_before":  &query.EndsBefore,
	} {
		if strings.TrimSpace(values.Get(key)) == "" {
			continue
		}
		if t, ok := parseQueryTime(values, key, vErr); ok {
			*dst = &t
		}
	}
	if vErr.HasErrors() {
		return application.RehearsalQuery{}, vErr
	}
	return query, nil
}

type rehearsalRequest struct {
	Title            string          `json:"title" validate:"required,max=200"`
	Description      *string         `json:"description" validate:"omitempty,max=2000"`
	Location         *string         `json:"location" validate:"omitempty,max=200"`
	Start            time.Time       `json:"start" validate:"required"`
	End              time.Time       `json:"end" validate:"required"`
	RecurringPattern json.RawMessage `json:"recurring_pattern"`
}

func (req rehearsalRequest) toInput() application.RehearsalInput {
	input := application.RehearsalInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         req.End,
	}
	if len(req.RecurringPattern) > 0 && string(req.RecurringPattern) != "null" {
		input.RecurringPattern = datatypes.JSON(req.RecurringPattern)
	}
	return input
}

type respondRequest struct {
	Response string `json:"response" validate:"required,oneof=yes no maybe"`
	Comment  string `json:"comment" validate:"max=1000"`
}

type attendanceRequest struct {
	AttendanceStatus string `json:"attendance_status" validate:"required,oneof=attended absent late"`
	LateMinutes      int    `json:"late_minutes" validate:"min=0"`
}

type rehearsalResponse struct {
	Rehearsal rehearsalDTO `json:"rehearsal"`
}

type listRehearsalsResponse struct {
	Rehearsals []rehearsalDTO `json:"rehearsals"`
}

type attendeeResponse struct {
	Attendee attendeeDTO `json:"attendee"`
}

type listAttendeesResponse struct {
	Attendees []attendeeDTO `json:"attendees"`
}

type rehearsalDTO struct {
	ID               string          `json:"id"`
	BandID           string          `json:"band_id"`
	Title            string          `json:"title"`
	Description      *string         `json:"description,omitempty"`
	Location         *string         `json:"location,omitempty"`
	Start            string          `json:"start"`
	End              string          `json:"end"`
	Status           string          `json:"status"`
	CreatedBy        string          `json:"created_by"`
	RecurringPattern json.RawMessage `json:"recurring_pattern,omitempty"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

type attendeeDTO struct {
	RehearsalID      string  `json:"rehearsal_id"`
	UserID           string  `json:"user_id"`
	Response         string  `json:"response,omitempty"`
	ResponseDate     *string `json:"response_date,omitempty"`
	AttendanceStatus string  `json:"attendance_status,omitempty"`
	LateMinutes      int     `json:"late_minutes"`
	Comment          string  `json:"comment,omitempty"`
}

func toRehearsalDTO(r application.Rehearsal) rehearsalDTO {
	dto := rehearsalDTO{
		ID:          r.ID,
		BandID:      r.BandID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Start:       formatTime(r.Start),
		End:         formatTime(r.End),
		Status:      string(r.Status),
		CreatedBy:   r.CreatedBy,
		CreatedAt:   formatTime(r.CreatedAt),
		UpdatedAt:   formatTime(r.UpdatedAt),
	}
	if len(r.RecurringPattern) > 0 {
		dto.RecurringPattern = json.RawMessage(r.RecurringPattern)
	}
	return dto
}

func toAttendeeDTO(a lifecycle.Attendee) attendeeDTO {
	return attendeeDTO{
		RehearsalID:      a.RehearsalID,
		UserID:           a.UserID,
		Response:         string(a.Response),
		ResponseDate:     formatTimePtr(a.ResponseDate),
		AttendanceStatus: string(a.AttendanceStatus),
		LateMinutes:      a.LateMinutes,
		Comment:          a.Comment,
	}
}
