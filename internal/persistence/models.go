package persistence

import (
	"time"

	"gorm.io/datatypes"
)

// User is a stored account.
type User struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Band is a stored band. CreatedBy is independent of membership rows.
type Band struct {
	ID          string
	Name        string
	Description *string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BandMember is a membership row keyed by (BandID, UserID).
type BandMember struct {
	BandID           string
	UserID           string
	Role             string
	Instrument       *string
	InvitationStatus string
	JoinedAt         time.Time
	UpdatedAt        time.Time
}

// AvailabilityRule is a stored weekly availability window. Times of day are
// "HH:MM" strings; date fields hold calendar dates at UTC midnight.
type AvailabilityRule struct {
	ID             string
	UserID         string
	DayOfWeek      int
	StartTime      string
	EndTime        string
	Recurring      bool
	SpecificDate   *time.Time
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Unavailability is a stored one-off busy period.
type Unavailability struct {
	ID        string
	UserID    string
	Start     time.Time
	End       time.Time
	Reason    *string
	CreatedAt time.Time
}

// Rehearsal is a stored rehearsal event. RecurringPattern is opaque JSON.
type Rehearsal struct {
	ID               string
	BandID           string
	Title            string
	Description      *string
	Location         *string
	Start            time.Time
	End              time.Time
	Status           string
	CreatedBy        string
	RecurringPattern datatypes.JSON
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RehearsalAttendee is a response/attendance row keyed by (RehearsalID, UserID).
type RehearsalAttendee struct {
	RehearsalID      string
	UserID           string
	Response         string
	ResponseDate     *time.Time
	AttendanceStatus string
	LateMinutes      int
	Comment          *string
	UpdatedAt        time.Time
}
