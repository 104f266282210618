package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
}

// BandRepository stores bands and their membership rows.
type BandRepository interface {
	// CreateBand inserts the band and its creator's membership atomically.
	CreateBand(ctx context.Context, band Band, creator BandMember) error
	GetBand(ctx context.Context, id string) (Band, error)
	// ListBandMembers returns members ordered by user id; an empty status means all.
	ListBandMembers(ctx context.Context, bandID, invitationStatus string) ([]BandMember, error)
	GetBandMember(ctx context.Context, bandID, userID string) (BandMember, error)
	AddBandMember(ctx context.Context, member BandMember) error
	UpdateBandMember(ctx context.Context, member BandMember) error
	// DeleteBand removes the band; memberships, rehearsals and attendee rows
	// go with it.
	DeleteBand(ctx context.Context, id string) error
}

// AvailabilityRepository stores availability rules and unavailability.
type AvailabilityRepository interface {
	CreateAvailabilityRule(ctx context.Context, rule AvailabilityRule) error
	ListAvailabilityRules(ctx context.Context, userID string) ([]AvailabilityRule, error)
	DeleteAvailabilityRule(ctx context.Context, userID, id string) error
	CreateUnavailability(ctx context.Context, u Unavailability) error
	// ListUnavailabilities returns rows overlapping [start, end) ordered by start.
	ListUnavailabilities(ctx context.Context, userID string, start, end time.Time) ([]Unavailability, error)
	DeleteUnavailability(ctx context.Context, userID, id string) error
}

// RehearsalFilter narrows rehearsal queries. Zero fields do not filter.
type RehearsalFilter struct {
	BandID      string
	Status      string
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// RehearsalRepository stores rehearsals and their attendee rows.
type RehearsalRepository interface {
	// CreateRehearsal inserts the rehearsal and all attendees atomically.
	CreateRehearsal(ctx context.Context, rehearsal Rehearsal, attendees []RehearsalAttendee) error
	GetRehearsal(ctx context.Context, id string) (Rehearsal, error)
	ListRehearsals(ctx context.Context, filter RehearsalFilter) ([]Rehearsal, error)
	// UpdateRehearsalStatus moves the status from expected to next, or
	// returns ErrStaleState when the stored status is no longer expected.
	UpdateRehearsalStatus(ctx context.Context, id, expected, next string, updatedAt time.Time) error
	ListAttendees(ctx context.Context, rehearsalID string) ([]RehearsalAttendee, error)
	GetAttendee(ctx context.Context, rehearsalID, userID string) (RehearsalAttendee, error)
	SaveAttendee(ctx context.Context, attendee RehearsalAttendee) error
	// EnsureAttendee inserts an unset attendee row for each rehearsal that
	// lacks one for userID and returns how many rows were added.
	EnsureAttendee(ctx context.Context, rehearsalIDs []string, userID string, at time.Time) (int, error)
}
