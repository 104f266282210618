package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/persistence"
)

var (
	userCounter           uint64
	bandCounter           uint64
	ruleCounter           uint64
	unavailabilityCounter uint64
	rehearsalCounter      uint64
)

// referenceTime is a Monday so weekday rules line up with calendar offsets.
var referenceTime = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns the reference week's day (0 = Monday) at hour:minute UTC.
func At(day, hour, minute int) time.Time {
	return referenceTime.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account record.
type UserFixture struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	fixture := UserFixture{
		ID:           id,
		Username:     fmt.Sprintf("user_%03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID and username.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
		f.Username = strings.ReplaceAll(id, "-", "_")
		f.Email = fmt.Sprintf("%s@example.com", id)
	}
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(f *UserFixture) {
		f.DisplayName = name
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User: application.User{
			ID:          f.ID,
			Username:    f.Username,
			Email:       f.Email,
			DisplayName: f.DisplayName,
			CreatedAt:   f.CreatedAt,
			UpdatedAt:   f.UpdatedAt,
		},
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns the fixture as the acting principal.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Username:     f.Username,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Band fixtures -----------------------------

// BandFixture represents a band together with its membership rows. The
// creator is always an accepted admin.
type BandFixture struct {
	ID        string
	Name      string
	CreatedBy string
	Members   []MemberFixture
	CreatedAt time.Time
}

// MemberFixture is one membership row of a BandFixture.
type MemberFixture struct {
	UserID     string
	Role       band.Role
	Status     band.InvitationStatus
	Instrument *string
}

// BandOption configures the generated band fixture.
type BandOption func(*BandFixture)

// NewBandFixture returns a band created by creatorID.
func NewBandFixture(creatorID string, opts ...BandOption) BandFixture {
	idx := atomic.AddUint64(&bandCounter, 1)
	fixture := BandFixture{
		ID:        fmt.Sprintf("band-%03d", idx),
		Name:      fmt.Sprintf("Band %03d", idx),
		CreatedBy: creatorID,
		Members: []MemberFixture{{
			UserID: creatorID,
			Role:   band.RoleAdmin,
			Status: band.InvitationAccepted,
		}},
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBandID overrides the generated band ID.
func WithBandID(id string) BandOption {
	return func(f *BandFixture) {
		f.ID = id
	}
}

// WithMember appends an accepted member with role.
func WithMember(userID string, role band.Role) BandOption {
	return WithInvitedMember(userID, role, band.InvitationAccepted)
}

// WithInvitedMember appends a member in the given invitation state.
func WithInvitedMember(userID string, role band.Role, status band.InvitationStatus) BandOption {
	return func(f *BandFixture) {
		f.Members = append(f.Members, MemberFixture{UserID: userID, Role: role, Status: status})
	}
}

// Application returns the fixture as an application.Band value.
func (f BandFixture) Application() application.Band {
	return application.Band{
		ID:        f.ID,
		Name:      f.Name,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Band value.
func (f BandFixture) Persistence() persistence.Band {
	return persistence.Band{
		ID:        f.ID,
		Name:      f.Name,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// ApplicationMembers returns the membership rows as application values.
func (f BandFixture) ApplicationMembers() []application.BandMember {
	out := make([]application.BandMember, 0, len(f.Members))
	for _, m := range f.Members {
		out = append(out, application.BandMember{
			Membership: band.Membership{
				BandID:           f.ID,
				UserID:           m.UserID,
				Role:             m.Role,
				InvitationStatus: m.Status,
			},
			Instrument: copyStringPtr(m.Instrument),
			JoinedAt:   f.CreatedAt,
			UpdatedAt:  f.CreatedAt,
		})
	}
	return out
}

// PersistenceMembers returns the membership rows as persistence values.
func (f BandFixture) PersistenceMembers() []persistence.BandMember {
	out := make([]persistence.BandMember, 0, len(f.Members))
	for _, m := range f.ApplicationMembers() {
		out = append(out, persistence.BandMember{
			BandID:           m.BandID,
			UserID:           m.UserID,
			Role:             string(m.Role),
			Instrument:       copyStringPtr(m.Instrument),
			InvitationStatus: string(m.InvitationStatus),
			JoinedAt:         m.JoinedAt,
			UpdatedAt:        m.UpdatedAt,
		})
	}
	return out
}

// ------------------------- Availability fixtures -------------------------

// RuleFixture represents a weekly availability window.
type RuleFixture struct {
	ID        string
	UserID    string
	DayOfWeek time.Weekday
	Start     string
	End       string
	Recurring bool
	Date      *time.Time
	CreatedAt time.Time
}

// RuleOption configures the generated rule fixture.
type RuleOption func(*RuleFixture)

// NewRuleFixture returns a recurring rule for userID on day between start and
// end, both "HH:MM".
func NewRuleFixture(userID string, day time.Weekday, start, end string, opts ...RuleOption) RuleFixture {
	idx := atomic.AddUint64(&ruleCounter, 1)
	fixture := RuleFixture{
		ID:        fmt.Sprintf("rule-%03d", idx),
		UserID:    userID,
		DayOfWeek: day,
		Start:     start,
		End:       end,
		Recurring: true,
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// OnDate turns the rule into a one-off rule for date's calendar day.
func OnDate(date time.Time) RuleOption {
	return func(f *RuleFixture) {
		y, m, d := date.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		f.Recurring = false
		f.Date = &day
		f.DayOfWeek = day.Weekday()
	}
}

// Application returns the fixture as an application.AvailabilityRule value.
func (f RuleFixture) Application() application.AvailabilityRule {
	return application.AvailabilityRule{
		Rule: availability.Rule{
			ID:           f.ID,
			UserID:       f.UserID,
			DayOfWeek:    f.DayOfWeek,
			StartTime:    availability.MustTimeOfDay(f.Start),
			EndTime:      availability.MustTimeOfDay(f.End),
			Recurring:    f.Recurring,
			SpecificDate: copyTimePtr(f.Date),
		},
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.AvailabilityRule value.
func (f RuleFixture) Persistence() persistence.AvailabilityRule {
	return persistence.AvailabilityRule{
		ID:           f.ID,
		UserID:       f.UserID,
		DayOfWeek:    int(f.DayOfWeek),
		StartTime:    f.Start,
		EndTime:      f.End,
		Recurring:    f.Recurring,
		SpecificDate: copyTimePtr(f.Date),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

// UnavailabilityFixture represents a busy period.
type UnavailabilityFixture struct {
	ID        string
	UserID    string
	Start     time.Time
	End       time.Time
	Reason    string
	CreatedAt time.Time
}

// NewUnavailabilityFixture returns a busy period for userID over [start, end).
func NewUnavailabilityFixture(userID string, start, end time.Time) UnavailabilityFixture {
	idx := atomic.AddUint64(&unavailabilityCounter, 1)
	return UnavailabilityFixture{
		ID:        fmt.Sprintf("unavail-%03d", idx),
		UserID:    userID,
		Start:     start,
		End:       end,
		Reason:    "busy",
		CreatedAt: referenceTime,
	}
}

// Application returns the fixture as an application.Unavailability value.
func (f UnavailabilityFixture) Application() application.Unavailability {
	return application.Unavailability{
		Unavailability: availability.Unavailability{
			ID:       f.ID,
			UserID:   f.UserID,
			Interval: interval.MustNew(f.Start, f.End),
			Reason:   f.Reason,
		},
		CreatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Unavailability value.
func (f UnavailabilityFixture) Persistence() persistence.Unavailability {
	reason := f.Reason
	return persistence.Unavailability{
		ID:        f.ID,
		UserID:    f.UserID,
		Start:     f.Start,
		End:       f.End,
		Reason:    &reason,
		CreatedAt: f.CreatedAt,
	}
}

// --------------------------- Rehearsal fixtures --------------------------

// RehearsalFixture represents a rehearsal with its invited attendees.
type RehearsalFixture struct {
	ID        string
	BandID    string
	Title     string
	Location  *string
	Start     time.Time
	End       time.Time
	Status    lifecycle.Status
	CreatedBy string
	Pattern   datatypes.JSON
	Attendees []string
	CreatedAt time.Time
}

// RehearsalOption configures the generated rehearsal fixture.
type RehearsalOption func(*RehearsalFixture)

// NewRehearsalFixture returns a scheduled two-hour rehearsal starting at start.
func NewRehearsalFixture(bandID, createdBy string, start time.Time, opts ...RehearsalOption) RehearsalFixture {
	idx := atomic.AddUint64(&rehearsalCounter, 1)
	fixture := RehearsalFixture{
		ID:        fmt.Sprintf("rehearsal-%03d", idx),
		BandID:    bandID,
		Title:     fmt.Sprintf("Rehearsal %03d", idx),
		Start:     start,
		End:       start.Add(2 * time.Hour),
		Status:    lifecycle.StatusScheduled,
		CreatedBy: createdBy,
		Attendees: []string{createdBy},
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRehearsalID overrides the generated rehearsal ID.
func WithRehearsalID(id string) RehearsalOption {
	return func(f *RehearsalFixture) {
		f.ID = id
	}
}

// WithRehearsalEnd overrides the end time.
func WithRehearsalEnd(end time.Time) RehearsalOption {
	return func(f *RehearsalFixture) {
		f.End = end
	}
}

// WithRehearsalStatus overrides the stored status.
func WithRehearsalStatus(status lifecycle.Status) RehearsalOption {
	return func(f *RehearsalFixture) {
		f.Status = status
	}
}

// WithAttendees replaces the invited attendee list.
func WithAttendees(userIDs ...string) RehearsalOption {
	return func(f *RehearsalFixture) {
		f.Attendees = append([]string(nil), userIDs...)
	}
}

// WithRecurringPattern attaches an opaque JSON pattern.
func WithRecurringPattern(raw string) RehearsalOption {
	return func(f *RehearsalFixture) {
		f.Pattern = datatypes.JSON(raw)
	}
}

// Application returns the fixture as an application.Rehearsal value.
func (f RehearsalFixture) Application() application.Rehearsal {
	return application.Rehearsal{
		ID:               f.ID,
		BandID:           f.BandID,
		Title:            f.Title,
		Location:         copyStringPtr(f.Location),
		Start:            f.Start,
		End:              f.End,
		Status:           f.Status,
		CreatedBy:        f.CreatedBy,
		RecurringPattern: f.Pattern,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Rehearsal value.
func (f RehearsalFixture) Persistence() persistence.Rehearsal {
	return persistence.Rehearsal{
		ID:               f.ID,
		BandID:           f.BandID,
		Title:            f.Title,
		Location:         copyStringPtr(f.Location),
		Start:            f.Start,
		End:              f.End,
		Status:           string(f.Status),
		CreatedBy:        f.CreatedBy,
		RecurringPattern: f.Pattern,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.CreatedAt,
	}
}

// ApplicationAttendees returns an unset attendee row per invited user.
func (f RehearsalFixture) ApplicationAttendees() []lifecycle.Attendee {
	out := make([]lifecycle.Attendee, 0, len(f.Attendees))
	for _, userID := range f.Attendees {
		out = append(out, lifecycle.Attendee{RehearsalID: f.ID, UserID: userID})
	}
	return out
}

// PersistenceAttendees returns an unset attendee row per invited user.
func (f RehearsalFixture) PersistenceAttendees() []persistence.RehearsalAttendee {
	out := make([]persistence.RehearsalAttendee, 0, len(f.Attendees))
	for _, userID := range f.Attendees {
		out = append(out, persistence.RehearsalAttendee{RehearsalID: f.ID, UserID: userID, UpdatedAt: f.CreatedAt})
	}
	return out
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
