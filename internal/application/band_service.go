package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

const bandServiceName = "band"

const (
	minBandNameLength = 2
	maxBandNameLength = 100
)

// BandService manages bands and their membership rows.
type BandService struct {
	bands       BandRepository
	users       UserRepository
	rehearsals  RehearsalRepository
	idGenerator func() string
	now         func() time.Time
	logger      *zerolog.Logger
}

// NewBandService wires dependencies for band operations. The rehearsal
// repository backs the attendee hook run when an invitation is accepted.
func NewBandService(bands BandRepository, users UserRepository, rehearsals RehearsalRepository, idGenerator func() string, now func() time.Time, logger *zerolog.Logger) *BandService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BandService{
		bands:       bands,
		users:       users,
		rehearsals:  rehearsals,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateBand stores a band with the principal recorded as creator and
// enrolled as an accepted admin.
func (s *BandService) CreateBand(ctx context.Context, principal Principal, input BandInput) (_ Band, err error) {
	if s == nil {
		return Band{}, fmt.Errorf("BandService is nil")
	}
	logger := serviceLogger(ctx, s.logger, bandServiceName, "create_band", map[string]any{"user_id": principal.UserID})
	defer func() { logOutcome(logger, err, "band creation") }()

	if principal.UserID == "" {
		return Band{}, ErrUnauthorized
	}

	name := strings.TrimSpace(input.Name)
	if n := utf8.RuneCountInString(name); n < minBandNameLength || n > maxBandNameLength {
		return Band{}, &ValidationError{FieldErrors: map[string]string{
			"name": fmt.Sprintf("must be between %d and %d characters", minBandNameLength, maxBandNameLength),
		}}
	}

	at := s.now()
	created := Band{
		ID:          s.idGenerator(),
		Name:        name,
		Description: trimmedOrNil(input.Description),
		CreatedBy:   principal.UserID,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	admin := BandMember{
		Membership: band.Membership{
			BandID:           created.ID,
			UserID:           principal.UserID,
			Role:             band.RoleAdmin,
			InvitationStatus: band.InvitationAccepted,
		},
		Instrument: trimmedOrNil(input.Instrument),
		JoinedAt:   at,
		UpdatedAt:  at,
	}

	if s.bands == nil {
		return created, nil
	}
	if err := s.bands.CreateBand(ctx, created, admin); err != nil {
		return Band{}, mapRepoError(err)
	}
	return created, nil
}

// GetBand returns the band when the principal holds any membership row in it.
func (s *BandService) GetBand(ctx context.Context, principal Principal, bandID string) (Band, error) {
	if s == nil {
		return Band{}, fmt.Errorf("BandService is nil")
	}
	if s.bands == nil {
		return Band{}, ErrNotFound
	}
	b, err := s.bands.GetBand(ctx, bandID)
	if err != nil {
		return Band{}, mapRepoError(err)
	}
	if _, err := s.bands.GetBandMember(ctx, bandID, principal.UserID); err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return Band{}, ErrUnauthorized
		}
		return Band{}, mapRepoError(err)
	}
	return b, nil
}

// ListMembers returns the band's membership rows. Accepted members see
// every row; anyone else is refused.
func (s *BandService) ListMembers(ctx context.Context, principal Principal, bandID string, status band.InvitationStatus) ([]BandMember, error) {
	if s == nil {
		return nil, fmt.Errorf("BandService is nil")
	}
	if status != "" && !status.Valid() {
		return nil, &ValidationError{FieldErrors: map[string]string{"status": "unknown invitation status"}}
	}
	if err := s.requireAccepted(ctx, principal, bandID); err != nil {
		return nil, err
	}
	members, err := s.bands.ListBandMembers(ctx, bandID, status)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return members, nil
}

// InviteMember adds a pending membership row. Only accepted band admins may invite.
func (s *BandService) InviteMember(ctx context.Context, params InviteMemberParams) (_ BandMember, err error) {
	if s == nil {
		return BandMember{}, fmt.Errorf("BandService is nil")
	}
	logger := serviceLogger(ctx, s.logger, bandServiceName, "invite_member", map[string]any{
		"band_id":    params.BandID,
		"user_id":    params.Principal.UserID,
		"invitee_id": params.UserID,
	})
	defer func() { logOutcome(logger, err, "member invitation") }()

	role := band.RoleMember
	if params.Role != "" {
		parsed, err := band.ParseRole(params.Role)
		if err != nil {
			return BandMember{}, &ValidationError{FieldErrors: map[string]string{"role": "must be admin, member or guest"}}
		}
		role = parsed
	}
	if strings.TrimSpace(params.UserID) == "" {
		return BandMember{}, &ValidationError{FieldErrors: map[string]string{"user_id": "is required"}}
	}

	if s.bands == nil {
		return BandMember{}, ErrNotFound
	}
	actor, err := s.bands.GetBandMember(ctx, params.BandID, params.Principal.UserID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return BandMember{}, ErrUnauthorized
		}
		return BandMember{}, mapRepoError(err)
	}
	if !actor.IsAdmin() {
		return BandMember{}, ErrUnauthorized
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, params.UserID); err != nil {
			return BandMember{}, mapRepoError(err)
		}
	}

	at := s.now()
	member := BandMember{
		Membership: band.Membership{
			BandID:           params.BandID,
			UserID:           params.UserID,
			Role:             role,
			InvitationStatus: band.InvitationPending,
		},
		Instrument: trimmedOrNil(params.Instrument),
		JoinedAt:   at,
		UpdatedAt:  at,
	}
	if err := s.bands.AddBandMember(ctx, member); err != nil {
		return BandMember{}, mapRepoError(err)
	}
	return member, nil
}

// RespondToInvitation moves the principal's pending membership to accepted
// or rejected. Accepting adds unset attendee rows to the band's future
// scheduled rehearsals.
func (s *BandService) RespondToInvitation(ctx context.Context, params InvitationResponseParams) (_ BandMember, err error) {
	if s == nil {
		return BandMember{}, fmt.Errorf("BandService is nil")
	}
	logger := serviceLogger(ctx, s.logger, bandServiceName, "respond_invitation", map[string]any{
		"band_id": params.BandID,
		"user_id": params.Principal.UserID,
		"accept":  params.Accept,
	})
	defer func() { logOutcome(logger, err, "invitation response") }()

	if params.Principal.UserID == "" {
		return BandMember{}, ErrUnauthorized
	}
	if s.bands == nil {
		return BandMember{}, ErrNotFound
	}
	member, err := s.bands.GetBandMember(ctx, params.BandID, params.Principal.UserID)
	if err != nil {
		return BandMember{}, mapRepoError(err)
	}
	if member.InvitationStatus != band.InvitationPending {
		return BandMember{}, fmt.Errorf("%w: invitation to band %s is %s", lifecycle.ErrInvalidTransition, params.BandID, member.InvitationStatus)
	}

	at := s.now()
	member.InvitationStatus = band.InvitationRejected
	if params.Accept {
		member.InvitationStatus = band.InvitationAccepted
		member.JoinedAt = at
	}
	member.UpdatedAt = at
	if err := s.bands.UpdateBandMember(ctx, member); err != nil {
		return BandMember{}, mapRepoError(err)
	}

	if member.IsAccepted() {
		added, err := s.enrollInUpcoming(ctx, member, at)
		if err != nil {
			return BandMember{}, err
		}
		logger.Debug().Int("attendee_rows_added", added).Msg("member enrolled in upcoming rehearsals")
	}
	return member, nil
}

// DeleteBand removes a band together with its memberships, rehearsals and
// attendee rows. Only accepted band admins may delete.
func (s *BandService) DeleteBand(ctx context.Context, principal Principal, bandID string) (err error) {
	if s == nil {
		return fmt.Errorf("BandService is nil")
	}
	logger := serviceLogger(ctx, s.logger, bandServiceName, "delete_band", map[string]any{
		"band_id": bandID,
		"user_id": principal.UserID,
	})
	defer func() { logOutcome(logger, err, "band deletion") }()

	if s.bands == nil {
		return ErrNotFound
	}
	actor, err := s.bands.GetBandMember(ctx, bandID, principal.UserID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return ErrUnauthorized
		}
		return mapRepoError(err)
	}
	if !actor.IsAdmin() {
		return ErrUnauthorized
	}
	return mapRepoError(s.bands.DeleteBand(ctx, bandID))
}

// enrollInUpcoming is the membership-change hook: a newly accepted member
// gets an unset attendee row on every scheduled rehearsal still ahead.
func (s *BandService) enrollInUpcoming(ctx context.Context, member BandMember, at time.Time) (int, error) {
	if s.rehearsals == nil {
		return 0, nil
	}
	upcoming, err := s.rehearsals.ListRehearsals(ctx, RehearsalQuery{
		BandID:      member.BandID,
		Status:      lifecycle.StatusScheduled,
		StartsAfter: &at,
	})
	if err != nil {
		return 0, mapRepoError(err)
	}
	if len(upcoming) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(upcoming))
	for _, r := range upcoming {
		ids = append(ids, r.ID)
	}
	added, err := s.rehearsals.EnsureAttendee(ctx, ids, member.UserID, at)
	if err != nil {
		return 0, mapRepoError(err)
	}
	return added, nil
}

func (s *BandService) requireAccepted(ctx context.Context, principal Principal, bandID string) error {
	if s.bands == nil {
		return ErrNotFound
	}
	if _, err := s.bands.GetBand(ctx, bandID); err != nil {
		return mapRepoError(err)
	}
	member, err := s.bands.GetBandMember(ctx, bandID, principal.UserID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return ErrUnauthorized
		}
		return mapRepoError(err)
	}
	if !member.IsAccepted() {
		return ErrUnauthorized
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
