// Package adapter converts between the storage models and the application
// types so the services can run on any persistence.Repository implementation.
// Repository errors pass through unchanged; the application maps them.
package adapter

import (
	"context"
	"time"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/persistence"
)

var (
	_ application.UserRepository         = (*UserRepository)(nil)
	_ application.BandRepository         = (*BandRepository)(nil)
	_ application.AvailabilityRepository = (*AvailabilityRepository)(nil)
	_ application.RehearsalRepository    = (*RehearsalRepository)(nil)
)

type UserRepository struct {
	repo persistence.UserRepository
}

func NewUserRepository(repo persistence.UserRepository) *UserRepository {
	return &UserRepository{repo: repo}
}

func (a *UserRepository) CreateUser(ctx context.Context, user application.UserCredentials) error {
	return a.repo.CreateUser(ctx, toPersistenceUser(user))
}

func (a *UserRepository) UpdateUser(ctx context.Context, user application.UserCredentials) error {
	return a.repo.UpdateUser(ctx, toPersistenceUser(user))
}

func (a *UserRepository) GetUser(ctx context.Context, id string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *UserRepository) GetUserByUsername(ctx context.Context, username string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return toApplicationUser(stored), nil
}

type BandRepository struct {
	repo persistence.BandRepository
}

func NewBandRepository(repo persistence.BandRepository) *BandRepository {
	return &BandRepository{repo: repo}
}

func (a *BandRepository) CreateBand(ctx context.Context, b application.Band, creator application.BandMember) error {
	return a.repo.CreateBand(ctx, toPersistenceBand(b), toPersistenceMember(creator))
}

func (a *BandRepository) GetBand(ctx context.Context, id string) (application.Band, error) {
	stored, err := a.repo.GetBand(ctx, id)
	if err != nil {
		return application.Band{}, err
	}
	return toApplicationBand(stored), nil
}

func (a *BandRepository) ListBandMembers(ctx context.Context, bandID string, status band.InvitationStatus) ([]application.BandMember, error) {
	models, err := a.repo.ListBandMembers(ctx, bandID, string(status))
	if err != nil {
		return nil, err
	}
	members := make([]application.BandMember, 0, len(models))
	for _, model := range models {
		member, err := toApplicationMember(model)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, nil
}

func (a *BandRepository) GetBandMember(ctx context.Context, bandID, userID string) (application.BandMember, error) {
	stored, err := a.repo.GetBandMember(ctx, bandID, userID)
	if err != nil {
		return application.BandMember{}, err
	}
	return toApplicationMember(stored)
}

func (a *BandRepository) AddBandMember(ctx context.Context, member application.BandMember) error {
	return a.repo.AddBandMember(ctx, toPersistenceMember(member))
}

func (a *BandRepository) UpdateBandMember(ctx context.Context, member application.BandMember) error {
	return a.repo.UpdateBandMember(ctx, toPersistenceMember(member))
}

func (a *BandRepository) DeleteBand(ctx context.Context, id string) error {
	return a.repo.DeleteBand(ctx, id)
}

type AvailabilityRepository struct {
	repo persistence.AvailabilityRepository
}

func NewAvailabilityRepository(repo persistence.AvailabilityRepository) *AvailabilityRepository {
	return &AvailabilityRepository{repo: repo}
}

func (a *AvailabilityRepository) CreateAvailabilityRule(ctx context.Context, rule application.AvailabilityRule) error {
	return a.repo.CreateAvailabilityRule(ctx, toPersistenceRule(rule))
}

func (a *AvailabilityRepository) ListAvailabilityRules(ctx context.Context, userID string) ([]application.AvailabilityRule, error) {
	models, err := a.repo.ListAvailabilityRules(ctx, userID)
	if err != nil {
		return nil, err
	}
	rules := make([]application.AvailabilityRule, 0, len(models))
	for _, model := range models {
		rule, err := toApplicationRule(model)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (a *AvailabilityRepository) DeleteAvailabilityRule(ctx context.Context, userID, id string) error {
	return a.repo.DeleteAvailabilityRule(ctx, userID, id)
}

func (a *AvailabilityRepository) CreateUnavailability(ctx context.Context, u application.Unavailability) error {
	return a.repo.CreateUnavailability(ctx, toPersistenceUnavailability(u))
}

func (a *AvailabilityRepository) ListUnavailabilities(ctx context.Context, userID string, window interval.Interval) ([]application.Unavailability, error) {
	models, err := a.repo.ListUnavailabilities(ctx, userID, window.Start(), window.End())
	if err != nil {
		return nil, err
	}
	out := make([]application.Unavailability, 0, len(models))
	for _, model := range models {
		u, err := toApplicationUnavailability(model)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (a *AvailabilityRepository) DeleteUnavailability(ctx context.Context, userID, id string) error {
	return a.repo.DeleteUnavailability(ctx, userID, id)
}

type RehearsalRepository struct {
	repo persistence.RehearsalRepository
}

func NewRehearsalRepository(repo persistence.RehearsalRepository) *RehearsalRepository {
	return &RehearsalRepository{repo: repo}
}

func (a *RehearsalRepository) CreateRehearsal(ctx context.Context, r application.Rehearsal, attendees []lifecycle.Attendee) error {
	rows := make([]persistence.RehearsalAttendee, 0, len(attendees))
	for _, attendee := range attendees {
		rows = append(rows, toPersistenceAttendee(attendee, r.CreatedAt))
	}
	return a.repo.CreateRehearsal(ctx, toPersistenceRehearsal(r), rows)
}

func (a *RehearsalRepository) GetRehearsal(ctx context.Context, id string) (application.Rehearsal, error) {
	stored, err := a.repo.GetRehearsal(ctx, id)
	if err != nil {
		return application.Rehearsal{}, err
	}
	return toApplicationRehearsal(stored), nil
}

func (a *RehearsalRepository) ListRehearsals(ctx context.Context, query application.RehearsalQuery) ([]application.Rehearsal, error) {
	models, err := a.repo.ListRehearsals(ctx, toPersistenceFilter(query))
	if err != nil {
		return nil, err
	}
	rehearsals := make([]application.Rehearsal, 0, len(models))
	for _, model := range models {
		rehearsals = append(rehearsals, toApplicationRehearsal(model))
	}
	return rehearsals, nil
}

func (a *RehearsalRepository) UpdateRehearsalStatus(ctx context.Context, id string, expected, next lifecycle.Status, at time.Time) error {
	return a.repo.UpdateRehearsalStatus(ctx, id, string(expected), string(next), at)
}

func (a *RehearsalRepository) ListAttendees(ctx context.Context, rehearsalID string) ([]lifecycle.Attendee, error) {
	models, err := a.repo.ListAttendees(ctx, rehearsalID)
	if err != nil {
		return nil, err
	}
	attendees := make([]lifecycle.Attendee, 0, len(models))
	for _, model := range models {
		attendees = append(attendees, toApplicationAttendee(model))
	}
	return attendees, nil
}

func (a *RehearsalRepository) GetAttendee(ctx context.Context, rehearsalID, userID string) (lifecycle.Attendee, error) {
	stored, err := a.repo.GetAttendee(ctx, rehearsalID, userID)
	if err != nil {
		return lifecycle.Attendee{}, err
	}
	return toApplicationAttendee(stored), nil
}

func (a *RehearsalRepository) SaveAttendee(ctx context.Context, attendee lifecycle.Attendee, at time.Time) error {
	return a.repo.SaveAttendee(ctx, toPersistenceAttendee(attendee, at))
}

func (a *RehearsalRepository) EnsureAttendee(ctx context.Context, rehearsalIDs []string, userID string, at time.Time) (int, error) {
	return a.repo.EnsureAttendee(ctx, rehearsalIDs, userID, at)
}
