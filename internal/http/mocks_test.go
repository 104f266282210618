package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/scheduler"
)

type userServiceMock struct{ mock.Mock }

func (m *userServiceMock) CreateUser(ctx context.Context, input application.UserInput) (application.User, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(application.User), args.Error(1)
}

func (m *userServiceMock) GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error) {
	args := m.Called(ctx, principal, userID)
	return args.Get(0).(application.User), args.Error(1)
}

func (m *userServiceMock) Authenticate(ctx context.Context, username, password string) (application.User, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(application.User), args.Error(1)
}

func (m *userServiceMock) UpdatePassword(ctx context.Context, params application.UpdatePasswordParams) error {
	return m.Called(ctx, params).Error(0)
}

type bandServiceMock struct{ mock.Mock }

func (m *bandServiceMock) CreateBand(ctx context.Context, principal application.Principal, input application.BandInput) (application.Band, error) {
	args := m.Called(ctx, principal, input)
	return args.Get(0).(application.Band), args.Error(1)
}

func (m *bandServiceMock) GetBand(ctx context.Context, principal application.Principal, bandID string) (application.Band, error) {
	args := m.Called(ctx, principal, bandID)
	return args.Get(0).(application.Band), args.Error(1)
}

func (m *bandServiceMock) ListMembers(ctx context.Context, principal application.Principal, bandID string, status band.InvitationStatus) ([]application.BandMember, error) {
	args := m.Called(ctx, principal, bandID, status)
	return args.Get(0).([]application.BandMember), args.Error(1)
}

func (m *bandServiceMock) InviteMember(ctx context.Context, params application.InviteMemberParams) (application.BandMember, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(application.BandMember), args.Error(1)
}

func (m *bandServiceMock) DeleteBand(ctx context.Context, principal application.Principal, bandID string) error {
	return m.Called(ctx, principal, bandID).Error(0)
}

func (m *bandServiceMock) RespondToInvitation(ctx context.Context, params application.InvitationResponseParams) (application.BandMember, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(application.BandMember), args.Error(1)
}

type availabilityServiceMock struct{ mock.Mock }

func (m *availabilityServiceMock) CreateRule(ctx context.Context, principal application.Principal, userID string, input application.AvailabilityRuleInput) (application.AvailabilityRule, error) {
	args := m.Called(ctx, principal, userID, input)
	return args.Get(0).(application.AvailabilityRule), args.Error(1)
}

func (m *availabilityServiceMock) ListRules(ctx context.Context, principal application.Principal, userID string) ([]application.AvailabilityRule, error) {
	args := m.Called(ctx, principal, userID)
	return args.Get(0).([]application.AvailabilityRule), args.Error(1)
}

func (m *availabilityServiceMock) DeleteRule(ctx context.Context, principal application.Principal, userID, ruleID string) error {
	return m.Called(ctx, principal, userID, ruleID).Error(0)
}

func (m *availabilityServiceMock) CreateUnavailability(ctx context.Context, principal application.Principal, userID string, input application.UnavailabilityInput) (application.Unavailability, error) {
	args := m.Called(ctx, principal, userID, input)
	return args.Get(0).(application.Unavailability), args.Error(1)
}

func (m *availabilityServiceMock) ListUnavailabilities(ctx context.Context, principal application.Principal, userID string, window interval.Interval) ([]application.Unavailability, error) {
	args := m.Called(ctx, principal, userID, window)
	return args.Get(0).([]application.Unavailability), args.Error(1)
}

func (m *availabilityServiceMock) DeleteUnavailability(ctx context.Context, principal application.Principal, userID, id string) error {
	return m.Called(ctx, principal, userID, id).Error(0)
}

func (m *availabilityServiceMock) FreeIntervals(ctx context.Context, principal application.Principal, userID string, window interval.Interval) ([]interval.Interval, error) {
	args := m.Called(ctx, principal, userID, window)
	return args.Get(0).([]interval.Interval), args.Error(1)
}

type rehearsalServiceMock struct{ mock.Mock }

func (m *rehearsalServiceMock) Create(ctx context.Context, params application.CreateRehearsalParams) (application.Rehearsal, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(application.Rehearsal), args.Error(1)
}

func (m *rehearsalServiceMock) Get(ctx context.Context, principal application.Principal, id string) (application.Rehearsal, error) {
	args := m.Called(ctx, principal, id)
	return args.Get(0).(application.Rehearsal), args.Error(1)
}

func (m *rehearsalServiceMock) List(ctx context.Context, principal application.Principal, query application.RehearsalQuery) ([]application.Rehearsal, error) {
	args := m.Called(ctx, principal, query)
	return args.Get(0).([]application.Rehearsal), args.Error(1)
}

func (m *rehearsalServiceMock) Cancel(ctx context.Context, principal application.Principal, id string) (application.Rehearsal, error) {
	args := m.Called(ctx, principal, id)
	return args.Get(0).(application.Rehearsal), args.Error(1)
}

func (m *rehearsalServiceMock) Complete(ctx context.Context, principal application.Principal, id string) (application.Rehearsal, error) {
	args := m.Called(ctx, principal, id)
	return args.Get(0).(application.Rehearsal), args.Error(1)
}

func (m *rehearsalServiceMock) Respond(ctx context.Context, params application.RespondParams) (lifecycle.Attendee, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(lifecycle.Attendee), args.Error(1)
}

func (m *rehearsalServiceMock) RecordAttendance(ctx context.Context, params application.RecordAttendanceParams) (lifecycle.Attendee, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(lifecycle.Attendee), args.Error(1)
}

func (m *rehearsalServiceMock) ListAttendees(ctx context.Context, principal application.Principal, id string) ([]lifecycle.Attendee, error) {
	args := m.Called(ctx, principal, id)
	return args.Get(0).([]lifecycle.Attendee), args.Error(1)
}

func (m *rehearsalServiceMock) AttendanceSheet(ctx context.Context, principal application.Principal, id string) (application.AttendanceSheet, error) {
	args := m.Called(ctx, principal, id)
	return args.Get(0).(application.AttendanceSheet), args.Error(1)
}

type schedulingServiceMock struct{ mock.Mock }

func (m *schedulingServiceMock) SuggestSlots(ctx context.Context, params application.SuggestSlotsParams) ([]scheduler.Suggestion, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]scheduler.Suggestion), args.Error(1)
}

func (m *schedulingServiceMock) ValidateSlot(ctx context.Context, params application.ValidateSlotParams) (scheduler.SlotValidation, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(scheduler.SlotValidation), args.Error(1)
}
