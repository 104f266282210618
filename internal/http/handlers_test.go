package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/band"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/report"
	"github.com/example/rehearsal-scheduler/internal/scheduler"
)

var testStart = time.Date(2024, time.March, 4, 18, 0, 0, 0, time.UTC)

type testServer struct {
	users        *userServiceMock
	bands        *bandServiceMock
	availability *availabilityServiceMock
	rehearsals   *rehearsalServiceMock
	scheduling   *schedulingServiceMock
	handler      http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		users:        &userServiceMock{},
		bands:        &bandServiceMock{},
		availability: &availabilityServiceMock{},
		rehearsals:   &rehearsalServiceMock{},
		scheduling:   &schedulingServiceMock{},
	}
	s.handler = NewRouter(RouterConfig{
		Users:        NewUserHandler(s.users, nil),
		Bands:        NewBandHandler(s.bands, nil),
		Availability: NewAvailabilityHandler(s.availability, s.availability, nil),
		Rehearsals:   NewRehearsalHandler(s.rehearsals, nil),
		Scheduling:   NewSchedulingHandler(s.scheduling, nil),
		Middleware:   []func(http.Handler) http.Handler{RequestLogger(nil)},
	})
	t.Cleanup(func() {
		s.users.AssertExpectations(t)
		s.bands.AssertExpectations(t)
		s.availability.AssertExpectations(t)
		s.rehearsals.AssertExpectations(t)
		s.scheduling.AssertExpectations(t)
	})
	return s
}

func (s *testServer) do(method, path, actor, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if actor != "" {
		req.Header.Set(ActingUserHeader, actor)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := decodeBody(t, rec)
	errs, ok := body["errors"].(map[string]any)
	require.True(t, ok, "expected field errors in %s", rec.Body.String())
	return errs
}

var actor = application.Principal{UserID: "u1"}

func TestRouter_RequiresActingUser(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/rehearsals/r1", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["message"], ActingUserHeader)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return testStart }
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		handler := NewRouter(RouterConfig{Health: NewHealthHandler(map[string]HealthCheck{"sqlite": ok, "redis": ok}, now, nil)})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "2024-03-04T18:00:00Z", body["time"])
	})

	t.Run("degraded", func(t *testing.T) {
		t.Parallel()

		handler := NewRouter(RouterConfig{Health: NewHealthHandler(map[string]HealthCheck{"sqlite": ok, "redis": down}, now, nil)})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, map[string]any{"sqlite": "ok", "redis": "error"}, body["checks"])
	})
}

func TestUserHandler(t *testing.T) {
	t.Parallel()

	t.Run("registration does not need an acting user", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.users.On("CreateUser", mock.Anything, application.UserInput{
			Username: "alice", Email: "alice@example.com", DisplayName: "Alice", Password: "long enough",
		}).Return(application.User{ID: "u1", Username: "alice", CreatedAt: testStart}, nil).Once()

		rec := s.do(http.MethodPost, "/users", "",
			`{"username":"alice","email":"alice@example.com","display_name":"Alice","password":"long enough"}`)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		user := decodeBody(t, rec)["user"].(map[string]any)
		assert.Equal(t, "u1", user["id"])
		assert.NotContains(t, user, "password")
	})

	t.Run("struct tag validation reports every field", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/users", "", `{"username":"al","email":"nope"}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := fieldErrors(t, rec)
		assert.Equal(t, "must be at least 3 characters", errs["username"])
		assert.Equal(t, "must be a valid email address", errs["email"])
		assert.Equal(t, "is required", errs["display_name"])
		assert.Equal(t, "is required", errs["password"])
		s.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("malformed JSON is a bad request", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/users", "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad credentials map to 401", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.users.On("Authenticate", mock.Anything, "alice", "wrong").
			Return(application.User{}, application.ErrInvalidCredentials).Once()

		rec := s.do(http.MethodPost, "/users/authenticate", "", `{"username":"alice","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", decodeBody(t, rec)["error_code"])
	})

	t.Run("password change passes the path user", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.users.On("UpdatePassword", mock.Anything, application.UpdatePasswordParams{
			Principal: actor, UserID: "u1", CurrentPassword: "old-password", NewPassword: "new-password",
		}).Return(nil).Once()

		rec := s.do(http.MethodPut, "/users/u1/password", "u1",
			`{"current_password":"old-password","new_password":"new-password"}`)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRehearsalHandler_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "unauthorized transition", err: lifecycle.ErrUnauthorizedTransition, status: http.StatusForbidden, code: "unauthorized_transition"},
		{name: "stale state", err: fmt.Errorf("%w: row changed", application.ErrStaleState), status: http.StatusConflict, code: "stale_state"},
		{name: "invalid transition", err: fmt.Errorf("%w: canceled is terminal", lifecycle.ErrInvalidTransition), status: http.StatusConflict, code: "invalid_transition"},
		{name: "not found", err: fmt.Errorf("%w: rehearsal r1", application.ErrNotFound), status: http.StatusNotFound, code: "not_found"},
		{name: "unexpected", err: errors.New("disk on fire"), status: http.StatusInternalServerError, code: "unexpected"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(t)
			s.rehearsals.On("Cancel", mock.Anything, actor, "r1").Return(application.Rehearsal{}, tc.err).Once()

			rec := s.do(http.MethodPost, "/rehearsals/r1/cancel", "u1", "")
			require.Equal(t, tc.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tc.code, body["error_code"])
			assert.NotContains(t, body["message"], "disk on fire")
		})
	}
}

func TestRehearsalHandler_Create(t *testing.T) {
	t.Parallel()

	t.Run("passes the band, actor and pattern through", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.rehearsals.On("Create", mock.Anything, mock.MatchedBy(func(p application.CreateRehearsalParams) bool {
			return p.BandID == "b1" &&
				p.Principal == actor &&
				p.Input.Title == "Set run" &&
				p.Input.Start.Equal(testStart) &&
				string(p.Input.RecurringPattern) == `{"freq":"weekly"}`
		})).Return(application.Rehearsal{
			ID: "r1", BandID: "b1", Title: "Set run", Start: testStart, End: testStart.Add(2 * time.Hour),
			Status: lifecycle.StatusScheduled, CreatedBy: "u1", RecurringPattern: []byte(`{"freq":"weekly"}`),
		}, nil).Once()

		rec := s.do(http.MethodPost, "/bands/b1/rehearsals", "u1",
			`{"title":"Set run","start":"2024-03-04T18:00:00Z","end":"2024-03-04T20:00:00Z","recurring_pattern":{"freq":"weekly"}}`)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rehearsal := decodeBody(t, rec)["rehearsal"].(map[string]any)
		assert.Equal(t, "scheduled", rehearsal["status"])
		assert.Equal(t, "2024-03-04T20:00:00Z", rehearsal["end"])
		assert.Equal(t, map[string]any{"freq": "weekly"}, rehearsal["recurring_pattern"])
	})

	t.Run("inverted interval is unprocessable", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.rehearsals.On("Create", mock.Anything, mock.Anything).
			Return(application.Rehearsal{}, fmt.Errorf("%w: end before start", interval.ErrInvalidInterval)).Once()

		rec := s.do(http.MethodPost, "/bands/b1/rehearsals", "u1",
			`{"title":"Set run","start":"2024-03-04T20:00:00Z","end":"2024-03-04T18:00:00Z"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_interval", decodeBody(t, rec)["error_code"])
	})

	t.Run("missing title and times are rejected before the service", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/bands/b1/rehearsals", "u1", `{}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := fieldErrors(t, rec)
		assert.Contains(t, errs, "title")
		assert.Contains(t, errs, "start")
		assert.Contains(t, errs, "end")
	})
}

func TestRehearsalHandler_List(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	after := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	s.rehearsals.On("List", mock.Anything, actor, mock.MatchedBy(func(q application.RehearsalQuery) bool {
		return q.BandID == "b1" && q.Status == lifecycle.StatusScheduled &&
			q.StartsAfter != nil && q.StartsAfter.Equal(after) && q.EndsBefore == nil
	})).Return([]application.Rehearsal{{ID: "r1", Status: lifecycle.StatusScheduled}}, nil).Once()

	rec := s.do(http.MethodGet, "/bands/b1/rehearsals?status=scheduled&starts_after=2024-03-01T00:00:00Z", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody(t, rec)["rehearsals"], 1)

	rec = s.do(http.MethodGet, "/bands/b1/rehearsals?ends_before=yesterday", "u1", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "must be an RFC 3339 timestamp", fieldErrors(t, rec)["ends_before"])
}

func TestRehearsalHandler_RespondAndAttendance(t *testing.T) {
	t.Parallel()

	t.Run("unknown response value", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPut, "/rehearsals/r1/response", "u1", `{"response":"perhaps"}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "must be one of: yes, no, maybe", fieldErrors(t, rec)["response"])
	})

	t.Run("response recorded", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		answered := testStart.Add(-time.Hour)
		s.rehearsals.On("Respond", mock.Anything, application.RespondParams{
			Principal: actor, RehearsalID: "r1", Response: "maybe", Comment: "stuck at work",
		}).Return(lifecycle.Attendee{
			RehearsalID: "r1", UserID: "u1", Response: lifecycle.ResponseMaybe, ResponseDate: &answered, Comment: "stuck at work",
		}, nil).Once()

		rec := s.do(http.MethodPut, "/rehearsals/r1/response", "u1", `{"response":"maybe","comment":"stuck at work"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		attendee := decodeBody(t, rec)["attendee"].(map[string]any)
		assert.Equal(t, "maybe", attendee["response"])
		assert.Equal(t, "2024-03-04T17:00:00Z", attendee["response_date"])
	})

	t.Run("attendance targets the path user", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.rehearsals.On("RecordAttendance", mock.Anything, application.RecordAttendanceParams{
			Principal: actor, RehearsalID: "r1", UserID: "u2", AttendanceStatus: "late", LateMinutes: 10,
		}).Return(lifecycle.Attendee{RehearsalID: "r1", UserID: "u2", AttendanceStatus: lifecycle.AttendanceLate, LateMinutes: 10}, nil).Once()

		rec := s.do(http.MethodPut, "/rehearsals/r1/attendance/u2", "u1", `{"attendance_status":"late","late_minutes":10}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		attendee := decodeBody(t, rec)["attendee"].(map[string]any)
		assert.Equal(t, "late", attendee["attendance_status"])
		assert.EqualValues(t, 10, attendee["late_minutes"])
	})

	t.Run("negative late minutes", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPut, "/rehearsals/r1/attendance/u2", "u1", `{"attendance_status":"late","late_minutes":-5}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "must be at least 0", fieldErrors(t, rec)["late_minutes"])
	})
}

func TestRehearsalHandler_AttendanceWorkbook(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.rehearsals.On("AttendanceSheet", mock.Anything, actor, "r1").Return(application.AttendanceSheet{
		Rehearsal: application.Rehearsal{ID: "r1", Title: "Set run", Start: testStart, End: testStart.Add(time.Hour), Status: lifecycle.StatusCompleted},
		Attendees: []lifecycle.Attendee{{RehearsalID: "r1", UserID: "u1", AttendanceStatus: lifecycle.AttendanceAttended}},
	}, nil).Once()

	rec := s.do(http.MethodGet, "/rehearsals/r1/attendance.xlsx", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance-r1.xlsx")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")
}

func TestSchedulingHandler_SuggestSlots(t *testing.T) {
	t.Parallel()

	body := `{"duration_minutes":60,"window_start":"2024-03-04T00:00:00Z","window_end":"2024-03-05T00:00:00Z","quorum":3,"roles":["member","admin"],"limit":5}`

	t.Run("converts the request into service params", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.scheduling.On("SuggestSlots", mock.Anything, mock.MatchedBy(func(p application.SuggestSlotsParams) bool {
			return p.BandID == "b1" &&
				p.Duration == time.Hour &&
				p.Window.Start().Equal(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)) &&
				p.Quorum.Count == 3 &&
				assert.ObjectsAreEqual([]band.Role{band.RoleMember, band.RoleAdmin}, p.Quorum.Roles) &&
				p.Limit == 5
		})).Return([]scheduler.Suggestion{{
			Start: testStart, End: testStart.Add(time.Hour), AvailableMembers: []string{"u1", "u2", "u3"}, AvailableCount: 3,
		}}, nil).Once()

		rec := s.do(http.MethodPost, "/bands/b1/slot-suggestions", "u1", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		suggestions := decodeBody(t, rec)["suggestions"].([]any)
		require.Len(t, suggestions, 1)
		first := suggestions[0].(map[string]any)
		assert.EqualValues(t, 3, first["available_count"])
		assert.Equal(t, "2024-03-04T18:00:00Z", first["start"])
	})

	t.Run("domain failures are unprocessable", func(t *testing.T) {
		t.Parallel()

		for _, err := range []error{scheduler.ErrNoQuorumMembers, availability.ErrWindowTooLarge} {
			s := newTestServer(t)
			s.scheduling.On("SuggestSlots", mock.Anything, mock.Anything).Return([]scheduler.Suggestion(nil), err).Once()

			rec := s.do(http.MethodPost, "/bands/b1/slot-suggestions", "u1", body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, err.Error())
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/bands/b1/slot-suggestions", "u1",
			`{"duration_minutes":60,"window_start":"2024-03-04T00:00:00Z","window_end":"2024-03-05T00:00:00Z","roles":["drummer"]}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, fieldErrors(t, rec), "roles[0]")
	})

	t.Run("inverted window", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/bands/b1/slot-suggestions", "u1",
			`{"duration_minutes":60,"window_start":"2024-03-05T00:00:00Z","window_end":"2024-03-04T00:00:00Z"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_interval", decodeBody(t, rec)["error_code"])
	})
}

func TestSchedulingHandler_ValidateSlot(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.scheduling.On("ValidateSlot", mock.Anything, mock.MatchedBy(func(p application.ValidateSlotParams) bool {
		return p.BandID == "b1" && p.Slot.Start().Equal(testStart) && p.Quorum.Count == 3
	})).Return(scheduler.SlotValidation{
		OK: false, Required: 3, AvailableMembers: []string{"u1", "u2"}, MissingMembers: []string{"u3"},
	}, nil).Once()

	rec := s.do(http.MethodPost, "/bands/b1/slot-validations", "u1",
		`{"start":"2024-03-04T18:00:00Z","end":"2024-03-04T20:00:00Z","quorum":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, []any{"u3"}, body["missing_members"])
}

func TestAvailabilityHandler(t *testing.T) {
	t.Parallel()

	t.Run("rule defaults to recurring", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.availability.On("CreateRule", mock.Anything, actor, "u1", application.AvailabilityRuleInput{
			DayOfWeek: 0, StartTime: "19:00", EndTime: "22:00", Recurring: true,
		}).Return(application.AvailabilityRule{Rule: availability.Rule{
			ID: "rule-1", UserID: "u1", DayOfWeek: time.Sunday,
			StartTime: availability.MustTimeOfDay("19:00"), EndTime: availability.MustTimeOfDay("22:00"), Recurring: true,
		}}, nil).Once()

		rec := s.do(http.MethodPost, "/users/u1/availability-rules", "u1",
			`{"day_of_week":0,"start_time":"19:00","end_time":"22:00"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rule := decodeBody(t, rec)["rule"].(map[string]any)
		assert.Equal(t, "19:00", rule["start_time"])
		assert.EqualValues(t, 0, rule["day_of_week"])
	})

	t.Run("one-off rule dates must be ISO dates", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/users/u1/availability-rules", "u1",
			`{"day_of_week":1,"start_time":"19:00","end_time":"22:00","recurring":false,"specific_date":"03/04/2024"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "must be formatted as 2006-01-02", fieldErrors(t, rec)["specific_date"])
	})

	t.Run("free intervals need a window", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodGet, "/users/u1/free-intervals", "u1", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		errs := fieldErrors(t, rec)
		assert.Equal(t, "is required", errs["start"])
		assert.Equal(t, "is required", errs["end"])
	})

	t.Run("free intervals for self", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		free := interval.MustNew(testStart, testStart.Add(3*time.Hour))
		s.availability.On("FreeIntervals", mock.Anything, actor, "u1", mock.MatchedBy(func(w interval.Interval) bool {
			return w.Start().Equal(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC))
		})).Return([]interval.Interval{free}, nil).Once()

		rec := s.do(http.MethodGet, "/users/u1/free-intervals?start=2024-03-04T00:00:00Z&end=2024-03-05T00:00:00Z", "u1", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []any{map[string]any{"start": "2024-03-04T18:00:00Z", "end": "2024-03-04T21:00:00Z"}},
			decodeBody(t, rec)["intervals"])
	})

	t.Run("other users' calendars are forbidden", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.availability.On("DeleteRule", mock.Anything, actor, "u2", "rule-1").Return(application.ErrUnauthorized).Once()

		rec := s.do(http.MethodDelete, "/users/u2/availability-rules/rule-1", "u1", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBandHandler(t *testing.T) {
	t.Parallel()

	t.Run("invite validates the role", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPost, "/bands/b1/members", "u1", `{"user_id":"u2","role":"boss"}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "must be one of: admin, member, guest", fieldErrors(t, rec)["role"])
	})

	t.Run("duplicate invitation conflicts", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.bands.On("InviteMember", mock.Anything, application.InviteMemberParams{
			Principal: actor, BandID: "b1", UserID: "u2", Role: "guest",
		}).Return(application.BandMember{}, application.ErrAlreadyExists).Once()

		rec := s.do(http.MethodPost, "/bands/b1/members", "u1", `{"user_id":"u2","role":"guest"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invitation answer requires accept", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		rec := s.do(http.MethodPut, "/bands/b1/invitation", "u2", `{}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "is required", fieldErrors(t, rec)["accept"])
	})

	t.Run("rejecting an invitation", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.bands.On("RespondToInvitation", mock.Anything, application.InvitationResponseParams{
			Principal: application.Principal{UserID: "u2"}, BandID: "b1", Accept: false,
		}).Return(application.BandMember{Membership: band.Membership{
			BandID: "b1", UserID: "u2", Role: band.RoleMember, InvitationStatus: band.InvitationRejected,
		}}, nil).Once()

		rec := s.do(http.MethodPut, "/bands/b1/invitation", "u2", `{"accept":false}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "rejected", decodeBody(t, rec)["member"].(map[string]any)["invitation_status"])
	})

	t.Run("member listing forwards the status filter", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.bands.On("ListMembers", mock.Anything, actor, "b1", band.InvitationPending).
			Return([]application.BandMember{}, nil).Once()

		rec := s.do(http.MethodGet, "/bands/b1/members?status=pending", "u1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{}, decodeBody(t, rec)["members"])
	})

	t.Run("deleting a band", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		s.bands.On("DeleteBand", mock.Anything, actor, "b1").Return(nil).Once()
		s.bands.On("DeleteBand", mock.Anything, application.Principal{UserID: "u2"}, "b1").Return(application.ErrUnauthorized).Once()

		rec := s.do(http.MethodDelete, "/bands/b1", "u1", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())

		rec = s.do(http.MethodDelete, "/bands/b1", "u2", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
