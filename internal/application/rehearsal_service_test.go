package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
)

var (
	futureStart = time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC)
	futureEnd   = futureStart.Add(2 * time.Hour)
	pastStart   = time.Date(2024, time.March, 3, 18, 0, 0, 0, time.UTC)
	pastEnd     = pastStart.Add(2 * time.Hour)
)

func testBands() *bandRepoStub {
	return newBandRepoStub().
		withMember("band-1", "admin", band.RoleAdmin, band.InvitationAccepted).
		withMember("band-1", "drummer", band.RoleMember, band.InvitationAccepted).
		withMember("band-1", "roadie", band.RoleGuest, band.InvitationAccepted).
		withMember("band-1", "newbie", band.RoleMember, band.InvitationPending)
}

func scheduledRehearsal(id string, start, end time.Time, createdBy string) Rehearsal {
	return Rehearsal{
		ID:        id,
		BandID:    "band-1",
		Title:     "Weekly run-through",
		Start:     start,
		End:       end,
		Status:    lifecycle.StatusScheduled,
		CreatedBy: createdBy,
	}
}

func newTestRehearsalService(repo *rehearsalRepoStub, bands *bandRepoStub, notifier Notifier) *RehearsalService {
	users := newUserRepoStub(
		UserCredentials{User: User{ID: "admin", DisplayName: "Ada Admin"}},
		UserCredentials{User: User{ID: "drummer", DisplayName: "Dee Drums"}},
	)
	return NewRehearsalService(repo, bands, users, notifier, NewMetrics(nil), sequentialIDs("rehearsal"), fixedClock, nil)
}

func TestRehearsalService_Create(t *testing.T) {
	t.Parallel()

	t.Run("adds one attendee row per accepted member and publishes", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub()
		notifier := &notifierMock{}
		notifier.On("Publish", mock.Anything, eventOfType(EventRehearsalCreated)).Return(nil).Once()
		svc := newTestRehearsalService(repo, testBands(), notifier)

		created, err := svc.Create(context.Background(), CreateRehearsalParams{
			Principal: Principal{UserID: "drummer"},
			BandID:    "band-1",
			Input: RehearsalInput{
				Title:            "  Set list polish  ",
				Start:            futureStart,
				End:              futureEnd,
				RecurringPattern: datatypes.JSON(`{"freq":"weekly"}`),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "rehearsal-1", created.ID)
		assert.Equal(t, "Set list polish", created.Title)
		assert.Equal(t, lifecycle.StatusScheduled, created.Status)
		assert.Equal(t, "drummer", created.CreatedBy)
		assert.JSONEq(t, `{"freq":"weekly"}`, string(repo.rehearsals["rehearsal-1"].RecurringPattern))

		attendees, err := repo.ListAttendees(context.Background(), "rehearsal-1")
		require.NoError(t, err)
		ids := make([]string, 0, len(attendees))
		for _, a := range attendees {
			ids = append(ids, a.UserID)
			assert.Equal(t, lifecycle.ResponseUnset, a.Response)
			assert.Equal(t, lifecycle.AttendanceUnset, a.AttendanceStatus)
		}
		assert.Equal(t, []string{"admin", "drummer", "roadie"}, ids)
		notifier.AssertExpectations(t)
	})

	t.Run("guests and outsiders cannot schedule", func(t *testing.T) {
		t.Parallel()

		svc := newTestRehearsalService(newRehearsalRepoStub(), testBands(), nil)
		for _, userID := range []string{"roadie", "newbie", "stranger"} {
			_, err := svc.Create(context.Background(), CreateRehearsalParams{
				Principal: Principal{UserID: userID},
				BandID:    "band-1",
				Input:     RehearsalInput{Title: "Jam", Start: futureStart, End: futureEnd},
			})
			assert.ErrorIs(t, err, ErrUnauthorized, userID)
		}
	})

	t.Run("validates input before touching storage", func(t *testing.T) {
		t.Parallel()

		svc := newTestRehearsalService(newRehearsalRepoStub(), testBands(), nil)
		_, err := svc.Create(context.Background(), CreateRehearsalParams{
			Principal: Principal{UserID: "admin"},
			BandID:    "band-1",
			Input: RehearsalInput{
				Title:            " ",
				Start:            futureStart,
				End:              futureEnd,
				RecurringPattern: datatypes.JSON(`{broken`),
			},
		})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "title")
		assert.Contains(t, vErr.FieldErrors, "recurring_pattern")
	})

	t.Run("rejects a malformed interval", func(t *testing.T) {
		t.Parallel()

		svc := newTestRehearsalService(newRehearsalRepoStub(), testBands(), nil)
		_, err := svc.Create(context.Background(), CreateRehearsalParams{
			Principal: Principal{UserID: "admin"},
			BandID:    "band-1",
			Input:     RehearsalInput{Title: "Backwards", Start: futureEnd, End: futureStart},
		})
		assert.ErrorIs(t, err, interval.ErrInvalidInterval)
	})

	t.Run("unknown band is not found", func(t *testing.T) {
		t.Parallel()

		svc := newTestRehearsalService(newRehearsalRepoStub(), testBands(), nil)
		_, err := svc.Create(context.Background(), CreateRehearsalParams{
			Principal: Principal{UserID: "admin"},
			BandID:    "band-404",
			Input:     RehearsalInput{Title: "Jam", Start: futureStart, End: futureEnd},
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRehearsalService_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("band admin cancels and the event is published", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "drummer"))
		notifier := &notifierMock{}
		notifier.On("Publish", mock.Anything, mock.MatchedBy(func(e Event) bool {
			return e.Type == EventRehearsalCanceled && e.RehearsalID == "r1" && e.BandID == "band-1" && e.UserID == "admin"
		})).Return(nil).Once()
		svc := newTestRehearsalService(repo, testBands(), notifier)

		updated, err := svc.Cancel(context.Background(), Principal{UserID: "admin"}, "r1")
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusCanceled, updated.Status)
		assert.Equal(t, lifecycle.StatusCanceled, repo.rehearsals["r1"].Status)
		notifier.AssertExpectations(t)
	})

	t.Run("creator may cancel their own rehearsal", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "drummer"))
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.Cancel(context.Background(), Principal{UserID: "drummer"}, "r1")
		require.NoError(t, err)
	})

	t.Run("other members may not cancel", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "admin"))
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.Cancel(context.Background(), Principal{UserID: "drummer"}, "r1")
		assert.ErrorIs(t, err, lifecycle.ErrUnauthorizedTransition)
		assert.Empty(t, repo.updates)
	})

	t.Run("terminal rehearsals cannot be canceled", func(t *testing.T) {
		t.Parallel()

		r := scheduledRehearsal("r1", futureStart, futureEnd, "admin")
		r.Status = lifecycle.StatusCompleted
		svc := newTestRehearsalService(newRehearsalRepoStub(r), testBands(), nil)

		_, err := svc.Cancel(context.Background(), Principal{UserID: "admin"}, "r1")
		assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	})

	t.Run("losing a concurrent transition reports stale state", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "admin"))
		repo.raceStatus = lifecycle.StatusCanceled
		metrics := NewMetrics(nil)
		svc := NewRehearsalService(repo, testBands(), nil, nil, metrics, nil, fixedClock, nil)

		_, err := svc.Cancel(context.Background(), Principal{UserID: "admin"}, "r1")
		assert.ErrorIs(t, err, ErrStaleState)
	})

	t.Run("missing rehearsal is not found", func(t *testing.T) {
		t.Parallel()

		svc := newTestRehearsalService(newRehearsalRepoStub(), testBands(), nil)
		_, err := svc.Cancel(context.Background(), Principal{UserID: "admin"}, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRehearsalService_Complete(t *testing.T) {
	t.Parallel()

	repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "drummer"))
	svc := newTestRehearsalService(repo, testBands(), nil)

	_, err := svc.Complete(context.Background(), Principal{UserID: "drummer"}, "r1")
	assert.ErrorIs(t, err, lifecycle.ErrUnauthorizedTransition)

	updated, err := svc.Complete(context.Background(), Principal{UserID: "admin"}, "r1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, updated.Status)

	_, err = svc.Complete(context.Background(), Principal{UserID: "admin"}, "r1")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestRehearsalService_GetAppliesLazyCompletion(t *testing.T) {
	t.Parallel()

	repo := newRehearsalRepoStub(scheduledRehearsal("r1", pastStart, pastEnd, "admin"))
	notifier := &notifierMock{}
	notifier.On("Publish", mock.Anything, eventOfType(EventRehearsalCompleted)).Return(nil).Once()
	svc := newTestRehearsalService(repo, testBands(), notifier)

	got, err := svc.Get(context.Background(), Principal{UserID: "drummer"}, "r1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, got.Status)
	assert.Equal(t, lifecycle.StatusCompleted, repo.rehearsals["r1"].Status)

	_, err = svc.Get(context.Background(), Principal{UserID: "stranger"}, "r1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	notifier.AssertExpectations(t)
}

func TestRehearsalService_GetIgnoresStaleLazyCompletion(t *testing.T) {
	t.Parallel()

	repo := newRehearsalRepoStub(scheduledRehearsal("r1", pastStart, pastEnd, "admin"))
	repo.raceStatus = lifecycle.StatusCanceled
	svc := newTestRehearsalService(repo, testBands(), nil)

	got, err := svc.Get(context.Background(), Principal{UserID: "admin"}, "r1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCanceled, got.Status)
}

func TestRehearsalService_List(t *testing.T) {
	t.Parallel()

	canceled := scheduledRehearsal("r3", futureStart.Add(48*time.Hour), futureEnd.Add(48*time.Hour), "admin")
	canceled.Status = lifecycle.StatusCanceled
	repo := newRehearsalRepoStub(
		scheduledRehearsal("r1", pastStart, pastEnd, "admin"),
		scheduledRehearsal("r2", futureStart, futureEnd, "admin"),
		canceled,
	)
	svc := newTestRehearsalService(repo, testBands(), nil)

	all, err := svc.List(context.Background(), Principal{UserID: "drummer"}, RehearsalQuery{BandID: "band-1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, lifecycle.StatusCompleted, all[0].Status)
	assert.Equal(t, lifecycle.StatusScheduled, all[1].Status)

	completed, err := svc.List(context.Background(), Principal{UserID: "drummer"}, RehearsalQuery{BandID: "band-1", Status: lifecycle.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "r1", completed[0].ID)

	_, err = svc.List(context.Background(), Principal{UserID: "newbie"}, RehearsalQuery{BandID: "band-1"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRehearsalService_Respond(t *testing.T) {
	t.Parallel()

	t.Run("attendee answers for themselves", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "admin")).
			withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		notifier := &notifierMock{}
		notifier.On("Publish", mock.Anything, mock.MatchedBy(func(e Event) bool {
			return e.Type == EventAttendeeResponseChanged && e.UserID == "drummer"
		})).Return(nil).Twice()
		svc := newTestRehearsalService(repo, testBands(), notifier)

		_, err := svc.Respond(context.Background(), RespondParams{
			Principal: Principal{UserID: "drummer"}, RehearsalID: "r1", Response: "maybe",
		})
		require.NoError(t, err)

		updated, err := svc.Respond(context.Background(), RespondParams{
			Principal: Principal{UserID: "drummer"}, RehearsalID: "r1", Response: "yes", Comment: " bringing snare ",
		})
		require.NoError(t, err)
		assert.Equal(t, lifecycle.ResponseYes, updated.Response)
		assert.Equal(t, "bringing snare", updated.Comment)
		require.NotNil(t, updated.ResponseDate)
		assert.True(t, updated.ResponseDate.Equal(testNow))
		assert.Equal(t, updated, repo.attendees["r1"]["drummer"])
		notifier.AssertExpectations(t)
	})

	t.Run("members without an attendee row are refused", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "admin"))
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.Respond(context.Background(), RespondParams{
			Principal: Principal{UserID: "drummer"}, RehearsalID: "r1", Response: "yes",
		})
		assert.ErrorIs(t, err, lifecycle.ErrUnauthorizedTransition)
	})

	t.Run("responses close once the rehearsal leaves scheduled", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", pastStart, pastEnd, "admin")).
			withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.Respond(context.Background(), RespondParams{
			Principal: Principal{UserID: "drummer"}, RehearsalID: "r1", Response: "yes",
		})
		assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	})

	t.Run("unknown responses are rejected", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "admin")).
			withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.Respond(context.Background(), RespondParams{
			Principal: Principal{UserID: "drummer"}, RehearsalID: "r1", Response: "perhaps",
		})
		assert.ErrorIs(t, err, lifecycle.ErrInvalidResponse)
	})
}

func TestRehearsalService_RecordAttendance(t *testing.T) {
	t.Parallel()

	t.Run("attendance is locked while the rehearsal is upcoming", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "admin")).
			withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.RecordAttendance(context.Background(), RecordAttendanceParams{
			Principal: Principal{UserID: "admin"}, RehearsalID: "r1", UserID: "drummer", AttendanceStatus: "attended",
		})
		assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	})

	t.Run("attendees cannot record their own attendance", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", futureStart, futureEnd, "admin")).
			withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.RecordAttendance(context.Background(), RecordAttendanceParams{
			Principal: Principal{UserID: "drummer"}, RehearsalID: "r1", UserID: "drummer", AttendanceStatus: "attended",
		})
		assert.ErrorIs(t, err, lifecycle.ErrUnauthorizedTransition)
	})

	t.Run("late arrivals need late minutes", func(t *testing.T) {
		t.Parallel()

		r := scheduledRehearsal("r1", pastStart, pastEnd, "admin")
		r.Status = lifecycle.StatusCompleted
		repo := newRehearsalRepoStub(r).withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.RecordAttendance(context.Background(), RecordAttendanceParams{
			Principal: Principal{UserID: "admin"}, RehearsalID: "r1", UserID: "drummer", AttendanceStatus: "late",
		})
		assert.ErrorIs(t, err, lifecycle.ErrInvalidAttendanceData)
	})

	t.Run("elapsed rehearsal is completed before attendance is stored", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", pastStart, pastEnd, "admin")).
			withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		notifier := &notifierMock{}
		notifier.On("Publish", mock.Anything, eventOfType(EventRehearsalCompleted)).Return(nil).Once()
		notifier.On("Publish", mock.Anything, eventOfType(EventAttendeeAttendanceRecorded)).Return(nil).Once()
		svc := newTestRehearsalService(repo, testBands(), notifier)

		updated, err := svc.RecordAttendance(context.Background(), RecordAttendanceParams{
			Principal: Principal{UserID: "admin"}, RehearsalID: "r1", UserID: "drummer",
			AttendanceStatus: "late", LateMinutes: 15,
		})
		require.NoError(t, err)
		assert.Equal(t, lifecycle.AttendanceLate, updated.AttendanceStatus)
		assert.Equal(t, 15, updated.LateMinutes)
		assert.Equal(t, lifecycle.StatusCompleted, repo.rehearsals["r1"].Status)
		assert.Equal(t, updated, repo.attendees["r1"]["drummer"])
		notifier.AssertExpectations(t)
	})

	t.Run("attendance is not stored when completion cannot be saved", func(t *testing.T) {
		t.Parallel()

		repo := newRehearsalRepoStub(scheduledRehearsal("r1", pastStart, pastEnd, "admin")).
			withAttendee("r1", lifecycle.Attendee{UserID: "drummer"})
		repo.updateErr = errors.New("disk I/O error")
		svc := newTestRehearsalService(repo, testBands(), nil)

		_, err := svc.RecordAttendance(context.Background(), RecordAttendanceParams{
			Principal: Principal{UserID: "admin"}, RehearsalID: "r1", UserID: "drummer", AttendanceStatus: "attended",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk I/O error")
		assert.Equal(t, lifecycle.StatusScheduled, repo.rehearsals["r1"].Status)
		assert.Equal(t, lifecycle.AttendanceUnset, repo.attendees["r1"]["drummer"].AttendanceStatus)
	})
}

func TestRehearsal_LifecycleRejectsMalformedBounds(t *testing.T) {
	t.Parallel()

	_, err := scheduledRehearsal("r1", pastEnd, pastStart, "admin").Lifecycle()
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	repo := newRehearsalRepoStub(scheduledRehearsal("r2", pastStart, pastStart, "admin"))
	svc := newTestRehearsalService(repo, testBands(), nil)

	_, err = svc.Cancel(context.Background(), Principal{UserID: "admin"}, "r2")
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
	_, err = svc.List(context.Background(), Principal{UserID: "admin"}, RehearsalQuery{BandID: "band-1"})
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	swept, err := svc.SweepElapsed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, swept)
	assert.Equal(t, lifecycle.StatusScheduled, repo.rehearsals["r2"].Status)
}

func TestRehearsalService_AttendanceSheet(t *testing.T) {
	t.Parallel()

	r := scheduledRehearsal("r1", pastStart, pastEnd, "admin")
	r.Status = lifecycle.StatusCompleted
	repo := newRehearsalRepoStub(r).
		withAttendee("r1", lifecycle.Attendee{UserID: "admin", AttendanceStatus: lifecycle.AttendanceAttended}).
		withAttendee("r1", lifecycle.Attendee{UserID: "drummer", AttendanceStatus: lifecycle.AttendanceAbsent})
	svc := newTestRehearsalService(repo, testBands(), nil)

	_, err := svc.AttendanceSheet(context.Background(), Principal{UserID: "drummer"}, "r1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	sheet, err := svc.AttendanceSheet(context.Background(), Principal{UserID: "admin"}, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", sheet.Rehearsal.ID)
	assert.Len(t, sheet.Attendees, 2)
	assert.Equal(t, map[string]string{"admin": "Ada Admin", "drummer": "Dee Drums"}, sheet.DisplayNames)
}

func TestRehearsalService_SweepElapsed(t *testing.T) {
	t.Parallel()

	canceled := scheduledRehearsal("r3", pastStart.Add(-24*time.Hour), pastEnd.Add(-24*time.Hour), "admin")
	canceled.Status = lifecycle.StatusCanceled
	repo := newRehearsalRepoStub(
		scheduledRehearsal("r1", pastStart, pastEnd, "admin"),
		scheduledRehearsal("r2", futureStart, futureEnd, "admin"),
		canceled,
	)
	notifier := &notifierMock{}
	notifier.On("Publish", mock.Anything, eventOfType(EventRehearsalCompleted)).Return(errors.New("redis down")).Once()
	svc := newTestRehearsalService(repo, testBands(), notifier)

	n, err := svc.SweepElapsed(context.Background())
	require.NoError(t, err, "publish failures never fail the sweep")
	assert.Equal(t, 1, n)
	assert.Equal(t, lifecycle.StatusCompleted, repo.rehearsals["r1"].Status)
	assert.Equal(t, lifecycle.StatusScheduled, repo.rehearsals["r2"].Status)
	assert.Equal(t, lifecycle.StatusCanceled, repo.rehearsals["r3"].Status)

	n, err = svc.SweepElapsed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	notifier.AssertExpectations(t)
}

func TestRehearsalService_NilReceiver(t *testing.T) {
	t.Parallel()

	var svc *RehearsalService
	_, err := svc.Get(context.Background(), Principal{UserID: "admin"}, "r1")
	assert.Error(t, err)
}
