package http

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/band"
)

type bandService interface {
	CreateBand(ctx context.Context, principal application.Principal, input application.BandInput) (application.Band, error)
	GetBand(ctx context.Context, principal application.Principal, bandID string) (application.Band, error)
	ListMembers(ctx context.Context, principal application.Principal, bandID string, status band.InvitationStatus) ([]application.BandMember, error)
	InviteMember(ctx context.Context, params application.InviteMemberParams) (application.BandMember, error)
	RespondToInvitation(ctx context.Context, params application.InvitationResponseParams) (application.BandMember, error)
	DeleteBand(ctx context.Context, principal application.Principal, bandID string) error
}

type BandHandler struct {
	service   bandService
	responder responder
	logger    *zerolog.Logger
}

func NewBandHandler(service bandService, logger *zerolog.Logger) *BandHandler {
	base := defaultLogger(logger)
	return &BandHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BandHandler) log(ctx context.Context, operation, bandID string) zerolog.Logger {
	logger := handlerLogger(ctx, h.logger, "BandHandler", operation)
	if bandID != "" {
		logger = logger.With().Str("band_id", bandID).Logger()
	}
	return logger
}

func (h *BandHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req createBandRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	created, err := h.service.CreateBand(r.Context(), principal, application.BandInput{
		Name:        req.Name,
		Description: req.Description,
		Instrument:  req.Instrument,
	})
	logger := h.log(r.Context(), "Create", created.ID)
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("band creation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Msg("band created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bandResponse{Band: toBandDTO(created)})
}

func (h *BandHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	b, err := h.service.GetBand(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bandResponse{Band: toBandDTO(b)})
}

// Delete removes the band with its rehearsals. Admins only.
func (h *BandHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	bandID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", bandID)
	if err := h.service.DeleteBand(r.Context(), principal, bandID); err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("band delete failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Msg("band deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ListMembers accepts an optional ?status=pending|accepted|rejected filter.
func (h *BandHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status := band.InvitationStatus(r.URL.Query().Get("status"))
	members, err := h.service.ListMembers(r.Context(), principal, r.PathValue("id"), status)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]memberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberDTO(m))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMembersResponse{Members: out})
}

func (h *BandHandler) Invite(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req inviteMemberRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	bandID := r.PathValue("id")
	logger := h.log(r.Context(), "Invite", bandID).With().Str("invitee_id", req.UserID).Logger()

	member, err := h.service.InviteMember(r.Context(), application.InviteMemberParams{
		Principal:  principal,
		BandID:     bandID,
		UserID:     req.UserID,
		Role:       req.Role,
		Instrument: req.Instrument,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("invitation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Msg("member invited")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, memberResponse{Member: toMemberDTO(member)})
}

// RespondToInvitation lets the acting user accept or reject their pending invitation.
func (h *BandHandler) RespondToInvitation(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req invitationResponseRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	bandID := r.PathValue("id")
	logger := h.log(r.Context(), "RespondToInvitation", bandID)

	member, err := h.service.RespondToInvitation(r.Context(), application.InvitationResponseParams{
		Principal: principal,
		BandID:    bandID,
		Accept:    *req.Accept,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("invitation response failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("invitation_status", string(member.InvitationStatus)).Msg("invitation answered")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberResponse{Member: toMemberDTO(member)})
}

type createBandRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Instrument  *string `json:"instrument" validate:"omitempty,max=100"`
}

type inviteMemberRequest struct {
	UserID     string  `json:"user_id" validate:"required"`
	Role       string  `json:"role" validate:"omitempty,oneof=admin member guest"`
	Instrument *string `json:"instrument" validate:"omitempty,max=100"`
}

type invitationResponseRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type bandResponse struct {
	Band bandDTO `json:"band"`
}

type memberResponse struct {
	Member memberDTO `json:"member"`
}

type listMembersResponse struct {
	Members []memberDTO `json:"members"`
}

type bandDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type memberDTO struct {
	BandID           string  `json:"band_id"`
	UserID           string  `json:"user_id"`
	Role             string  `json:"role"`
	InvitationStatus string  `json:"invitation_status"`
	Instrument       *string `json:"instrument,omitempty"`
	JoinedAt         string  `json:"joined_at"`
}

func toBandDTO(b application.Band) bandDTO {
	return bandDTO{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

func toMemberDTO(m application.BandMember) memberDTO {
	return memberDTO{
		BandID:           m.BandID,
		UserID:           m.UserID,
		Role:             string(m.Role),
		InvitationStatus: string(m.InvitationStatus),
		Instrument:       m.Instrument,
		JoinedAt:         formatTime(m.JoinedAt),
	}
}
