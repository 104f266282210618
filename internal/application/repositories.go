package application

import (
	"context"
	"time"

	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

// UserRepository captures the user persistence interactions needed by the services.
type UserRepository interface {
	CreateUser(ctx context.Context, user UserCredentials) error
	UpdateUser(ctx context.Context, user UserCredentials) error
	GetUser(ctx context.Context, id string) (UserCredentials, error)
	GetUserByUsername(ctx context.Context, username string) (UserCredentials, error)
}

// BandRepository loads and stores bands and membership rows.
type BandRepository interface {
	// CreateBand stores the band and its creator's membership atomically.
	CreateBand(ctx context.Context, b Band, creator BandMember) error
	GetBand(ctx context.Context, id string) (Band, error)
	// ListBandMembers returns members ordered by user id; an empty status means all.
	ListBandMembers(ctx context.Context, bandID string, status band.InvitationStatus) ([]BandMember, error)
	GetBandMember(ctx context.Context, bandID, userID string) (BandMember, error)
	AddBandMember(ctx context.Context, member BandMember) error
	UpdateBandMember(ctx context.Context, member BandMember) error
	DeleteBand(ctx context.Context, id string) error
}

// AvailabilityRepository loads and stores a user's calendar.
type AvailabilityRepository interface {
	CreateAvailabilityRule(ctx context.Context, rule AvailabilityRule) error
	ListAvailabilityRules(ctx context.Context, userID string) ([]AvailabilityRule, error)
	DeleteAvailabilityRule(ctx context.Context, userID, id string) error
	CreateUnavailability(ctx context.Context, u Unavailability) error
	// ListUnavailabilities returns rows overlapping window.
	ListUnavailabilities(ctx context.Context, userID string, window interval.Interval) ([]Unavailability, error)
	DeleteUnavailability(ctx context.Context, userID, id string) error
}

// RehearsalRepository loads and stores rehearsals and attendee rows.
type RehearsalRepository interface {
	// CreateRehearsal stores the rehearsal and every attendee row atomically.
	CreateRehearsal(ctx context.Context, r Rehearsal, attendees []lifecycle.Attendee) error
	GetRehearsal(ctx context.Context, id string) (Rehearsal, error)
	ListRehearsals(ctx context.Context, query RehearsalQuery) ([]Rehearsal, error)
	// UpdateRehearsalStatus fails with a stale state error when the stored
	// status is no longer expected.
	UpdateRehearsalStatus(ctx context.Context, id string, expected, next lifecycle.Status, at time.Time) error
	ListAttendees(ctx context.Context, rehearsalID string) ([]lifecycle.Attendee, error)
	GetAttendee(ctx context.Context, rehearsalID, userID string) (lifecycle.Attendee, error)
	SaveAttendee(ctx context.Context, attendee lifecycle.Attendee, at time.Time) error
	// EnsureAttendee adds an unset row for userID to each rehearsal lacking one.
	EnsureAttendee(ctx context.Context, rehearsalIDs []string, userID string, at time.Time) (int, error)
}
