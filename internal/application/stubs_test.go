package application

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/persistence"
)

var testNow = time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

type userRepoStub struct {
	users   map[string]UserCredentials
	created []UserCredentials
	updated []UserCredentials
	err     error
}

func newUserRepoStub(users ...UserCredentials) *userRepoStub {
	s := &userRepoStub{users: make(map[string]UserCredentials)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userRepoStub) CreateUser(_ context.Context, user UserCredentials) error {
	if s.err != nil {
		return s.err
	}
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	s.created = append(s.created, user)
	return nil
}

func (s *userRepoStub) UpdateUser(_ context.Context, user UserCredentials) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.users[user.ID] = user
	s.updated = append(s.updated, user)
	return nil
}

func (s *userRepoStub) GetUser(_ context.Context, id string) (UserCredentials, error) {
	if s.err != nil {
		return UserCredentials{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return UserCredentials{}, persistence.ErrNotFound
	}
	return u, nil
}

func (s *userRepoStub) GetUserByUsername(_ context.Context, username string) (UserCredentials, error) {
	if s.err != nil {
		return UserCredentials{}, s.err
	}
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

type bandRepoStub struct {
	bands   map[string]Band
	members map[string]map[string]BandMember
	err     error
}

func newBandRepoStub() *bandRepoStub {
	return &bandRepoStub{
		bands:   make(map[string]Band),
		members: make(map[string]map[string]BandMember),
	}
}

// withMember seeds a membership row, creating the band when needed.
func (s *bandRepoStub) withMember(bandID, userID string, role band.Role, status band.InvitationStatus) *bandRepoStub {
	if _, ok := s.bands[bandID]; !ok {
		s.bands[bandID] = Band{ID: bandID, Name: "Band " + bandID, CreatedBy: userID}
	}
	if s.members[bandID] == nil {
		s.members[bandID] = make(map[string]BandMember)
	}
	s.members[bandID][userID] = BandMember{Membership: band.Membership{
		BandID: bandID, UserID: userID, Role: role, InvitationStatus: status,
	}}
	return s
}

func (s *bandRepoStub) CreateBand(_ context.Context, b Band, creator BandMember) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.bands[b.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.bands[b.ID] = b
	s.members[b.ID] = map[string]BandMember{creator.UserID: creator}
	return nil
}

func (s *bandRepoStub) GetBand(_ context.Context, id string) (Band, error) {
	if s.err != nil {
		return Band{}, s.err
	}
	b, ok := s.bands[id]
	if !ok {
		return Band{}, persistence.ErrNotFound
	}
	return b, nil
}

func (s *bandRepoStub) ListBandMembers(_ context.Context, bandID string, status band.InvitationStatus) ([]BandMember, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]BandMember, 0)
	for _, m := range s.members[bandID] {
		if status != "" && m.InvitationStatus != status {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *bandRepoStub) GetBandMember(_ context.Context, bandID, userID string) (BandMember, error) {
	if s.err != nil {
		return BandMember{}, s.err
	}
	m, ok := s.members[bandID][userID]
	if !ok {
		return BandMember{}, persistence.ErrNotFound
	}
	return m, nil
}

func (s *bandRepoStub) AddBandMember(_ context.Context, member BandMember) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.members[member.BandID][member.UserID]; ok {
		return persistence.ErrDuplicate
	}
	if s.members[member.BandID] == nil {
		s.members[member.BandID] = make(map[string]BandMember)
	}
	s.members[member.BandID][member.UserID] = member
	return nil
}

func (s *bandRepoStub) UpdateBandMember(_ context.Context, member BandMember) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.members[member.BandID][member.UserID]; !ok {
		return persistence.ErrNotFound
	}
	s.members[member.BandID][member.UserID] = member
	return nil
}

func (s *bandRepoStub) DeleteBand(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	if _, ok := s.bands[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.bands, id)
	delete(s.members, id)
	return nil
}

type availabilityRepoStub struct {
	rules   map[string][]AvailabilityRule
	blocks  map[string][]Unavailability
	deleted []string
	err     error
}

func newAvailabilityRepoStub() *availabilityRepoStub {
	return &availabilityRepoStub{
		rules:  make(map[string][]AvailabilityRule),
		blocks: make(map[string][]Unavailability),
	}
}

func (s *availabilityRepoStub) CreateAvailabilityRule(_ context.Context, rule AvailabilityRule) error {
	if s.err != nil {
		return s.err
	}
	s.rules[rule.UserID] = append(s.rules[rule.UserID], rule)
	return nil
}

func (s *availabilityRepoStub) ListAvailabilityRules(_ context.Context, userID string) ([]AvailabilityRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rules[userID], nil
}

func (s *availabilityRepoStub) DeleteAvailabilityRule(_ context.Context, userID, id string) error {
	if s.err != nil {
		return s.err
	}
	for i, r := range s.rules[userID] {
		if r.ID == id {
			s.rules[userID] = append(s.rules[userID][:i], s.rules[userID][i+1:]...)
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *availabilityRepoStub) CreateUnavailability(_ context.Context, u Unavailability) error {
	if s.err != nil {
		return s.err
	}
	s.blocks[u.UserID] = append(s.blocks[u.UserID], u)
	return nil
}

func (s *availabilityRepoStub) ListUnavailabilities(_ context.Context, userID string, window interval.Interval) ([]Unavailability, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Unavailability, 0)
	for _, u := range s.blocks[userID] {
		if ok, _ := interval.Overlaps(u.Interval, window); ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *availabilityRepoStub) DeleteUnavailability(_ context.Context, userID, id string) error {
	if s.err != nil {
		return s.err
	}
	for i, u := range s.blocks[userID] {
		if u.ID == id {
			s.blocks[userID] = append(s.blocks[userID][:i], s.blocks[userID][i+1:]...)
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return persistence.ErrNotFound
}

type rehearsalRepoStub struct {
	rehearsals map[string]Rehearsal
	attendees  map[string]map[string]lifecycle.Attendee
	// raceStatus, when set, is written just before a status update to
	// simulate a concurrent writer.
	raceStatus lifecycle.Status
	updates    []lifecycle.Status
	createErr  error
	updateErr  error
	err        error
}

func newRehearsalRepoStub(rehearsals ...Rehearsal) *rehearsalRepoStub {
	s := &rehearsalRepoStub{
		rehearsals: make(map[string]Rehearsal),
		attendees:  make(map[string]map[string]lifecycle.Attendee),
	}
	for _, r := range rehearsals {
		s.rehearsals[r.ID] = r
		s.attendees[r.ID] = make(map[string]lifecycle.Attendee)
	}
	return s
}

func (s *rehearsalRepoStub) withAttendee(rehearsalID string, a lifecycle.Attendee) *rehearsalRepoStub {
	a.RehearsalID = rehearsalID
	s.attendees[rehearsalID][a.UserID] = a
	return s
}

func (s *rehearsalRepoStub) CreateRehearsal(_ context.Context, r Rehearsal, attendees []lifecycle.Attendee) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.rehearsals[r.ID] = r
	s.attendees[r.ID] = make(map[string]lifecycle.Attendee)
	for _, a := range attendees {
		s.attendees[r.ID][a.UserID] = a
	}
	return nil
}

func (s *rehearsalRepoStub) GetRehearsal(_ context.Context, id string) (Rehearsal, error) {
	if s.err != nil {
		return Rehearsal{}, s.err
	}
	r, ok := s.rehearsals[id]
	if !ok {
		return Rehearsal{}, persistence.ErrNotFound
	}
	return r, nil
}

func (s *rehearsalRepoStub) ListRehearsals(_ context.Context, query RehearsalQuery) ([]Rehearsal, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Rehearsal, 0)
	for _, r := range s.rehearsals {
		switch {
		case query.BandID != "" && r.BandID != query.BandID:
			continue
		case query.Status != "" && r.Status != query.Status:
			continue
		case query.StartsAfter != nil && r.Start.Before(*query.StartsAfter):
			continue
		case query.EndsBefore != nil && r.End.After(*query.EndsBefore):
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *rehearsalRepoStub) UpdateRehearsalStatus(_ context.Context, id string, expected, next lifecycle.Status, at time.Time) error {
	if s.err != nil {
		return s.err
	}
	if s.updateErr != nil {
		return s.updateErr
	}
	r, ok := s.rehearsals[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if s.raceStatus != "" {
		r.Status = s.raceStatus
		s.rehearsals[id] = r
	}
	if r.Status != expected {
		return persistence.ErrStaleState
	}
	r.Status = next
	r.UpdatedAt = at
	s.rehearsals[id] = r
	s.updates = append(s.updates, next)
	return nil
}

func (s *rehearsalRepoStub) ListAttendees(_ context.Context, rehearsalID string) ([]lifecycle.Attendee, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]lifecycle.Attendee, 0, len(s.attendees[rehearsalID]))
	for _, a := range s.attendees[rehearsalID] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *rehearsalRepoStub) GetAttendee(_ context.Context, rehearsalID, userID string) (lifecycle.Attendee, error) {
	if s.err != nil {
		return lifecycle.Attendee{}, s.err
	}
	a, ok := s.attendees[rehearsalID][userID]
	if !ok {
		return lifecycle.Attendee{}, persistence.ErrNotFound
	}
	return a, nil
}

func (s *rehearsalRepoStub) SaveAttendee(_ context.Context, a lifecycle.Attendee, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.attendees[a.RehearsalID][a.UserID] = a
	return nil
}

func (s *rehearsalRepoStub) EnsureAttendee(_ context.Context, rehearsalIDs []string, userID string, _ time.Time) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	added := 0
	for _, id := range rehearsalIDs {
		if _, ok := s.attendees[id][userID]; ok {
			continue
		}
		s.attendees[id][userID] = lifecycle.Attendee{RehearsalID: id, UserID: userID}
		added++
	}
	return added, nil
}

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Publish(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func eventOfType(eventType EventType) any {
	return mock.MatchedBy(func(e Event) bool { return e.Type == eventType })
}
