package application

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
}

// User is an account without its secret.
type User struct {
	ID          string
	Username    string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials pairs a user with the stored password hash.
type UserCredentials struct {
	User
	PasswordHash string
}

// UserInput captures caller provided fields for a new account.
type UserInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// UpdatePasswordParams wraps a password change.
type UpdatePasswordParams struct {
	Principal       Principal
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// Band is a group of musicians.
type Band struct {
	ID          string
	Name        string
	Description *string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BandInput captures caller provided band fields.
type BandInput struct {
	Name        string
	Description *string
	Instrument  *string
}

// BandMember is a membership row with its bookkeeping fields.
type BandMember struct {
	band.Membership
	Instrument *string
	JoinedAt   time.Time
	UpdatedAt  time.Time
}

// InviteMemberParams wraps an invitation sent by a band admin.
type InviteMemberParams struct {
	Principal  Principal
	BandID     string
	UserID     string
	Role       string
	Instrument *string
}

// InvitationResponseParams wraps the invitee's answer.
type InvitationResponseParams struct {
	Principal Principal
	BandID    string
	Accept    bool
}

// AvailabilityRule is a stored weekly free window.
type AvailabilityRule struct {
	availability.Rule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityRuleInput captures caller provided rule fields. Times are "HH:MM".
type AvailabilityRuleInput struct {
	DayOfWeek      int
	StartTime      string
	EndTime        string
	Recurring      bool
	SpecificDate   *time.Time
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
}

// Unavailability is a stored busy period.
type Unavailability struct {
	availability.Unavailability
	CreatedAt time.Time
}

// UnavailabilityInput captures caller provided busy period fields.
type UnavailabilityInput struct {
	Start  time.Time
	End    time.Time
	Reason string
}

// Rehearsal is a scheduled band rehearsal. RecurringPattern is opaque JSON
// stored for clients and never expanded.
type Rehearsal struct {
	ID               string
	BandID           string
	Title            string
	Description      *string
	Location         *string
	Start            time.Time
	End              time.Time
	Status           lifecycle.Status
	CreatedBy        string
	RecurringPattern datatypes.JSON
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Lifecycle returns the lifecycle view of r. A row whose bounds do not form
// an interval fails with interval.ErrInvalidInterval.
func (r Rehearsal) Lifecycle() (lifecycle.Rehearsal, error) {
	iv, err := interval.New(r.Start, r.End)
	if err != nil {
		return lifecycle.Rehearsal{}, fmt.Errorf("rehearsal %s: %w", r.ID, err)
	}
	return lifecycle.Rehearsal{
		ID:        r.ID,
		BandID:    r.BandID,
		CreatedBy: r.CreatedBy,
		Interval:  iv,
		Status:    r.Status,
	}, nil
}

// RehearsalInput captures caller provided rehearsal fields.
type RehearsalInput struct {
	Title            string
	Description      *string
	Location         *string
	Start            time.Time
	End              time.Time
	RecurringPattern datatypes.JSON
}

// CreateRehearsalParams wraps the data required to create a rehearsal.
type CreateRehearsalParams struct {
	Principal Principal
	BandID    string
	Input     RehearsalInput
}

// RehearsalQuery narrows rehearsal listings. Zero fields do not filter.
type RehearsalQuery struct {
	BandID      string
	Status      lifecycle.Status
	StartsAfter *time.Time
	EndsBefore  *time.Time
}

// RespondParams wraps an attendee's answer.
type RespondParams struct {
	Principal   Principal
	RehearsalID string
	Response    string
	Comment     string
}

// RecordAttendanceParams wraps an admin's attendance entry.
type RecordAttendanceParams struct {
	Principal        Principal
	RehearsalID      string
	UserID           string
	AttendanceStatus string
	LateMinutes      int
}

// AttendanceSheet is a rehearsal with its attendee rows and member names.
type AttendanceSheet struct {
	Rehearsal    Rehearsal
	Attendees    []lifecycle.Attendee
	DisplayNames map[string]string
}

// SuggestSlotsParams wraps a slot suggestion request.
type SuggestSlotsParams struct {
	Principal Principal
	BandID    string
	Duration  time.Duration
	Window    interval.Interval
	Quorum    scheduler.Quorum
	// Limit caps the ranked result; zero uses the service default.
	Limit int
}

// ValidateSlotParams wraps a proposed slot check.
type ValidateSlotParams struct {
	Principal Principal
	BandID    string
	Slot      interval.Interval
	Quorum    scheduler.Quorum
}
