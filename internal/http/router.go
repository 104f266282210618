package http

import (
	"net/http"

	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Health       *HealthHandler
	Users        *UserHandler
	Bands        *BandHandler
	Availability *AvailabilityHandler
	Rehearsals   *RehearsalHandler
	Scheduling   *SchedulingHandler
	// Middleware wraps every route, outermost first.
	Middleware []func(http.Handler) http.Handler
	Logger     *zerolog.Logger
}

// NewRouter registers the API on a ServeMux. Every route except health,
// registration and credential checks requires an acting user.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	actor := RequireActor(cfg.Logger)
	protected := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, actor(fn))
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /api/health", cfg.Health.Get)
	}

	if cfg.Users != nil {
		mux.HandleFunc("POST /users", cfg.Users.Create)
		mux.HandleFunc("POST /users/authenticate", cfg.Users.Authenticate)
		protected("GET /users/{id}", cfg.Users.Get)
		protected("PUT /users/{id}/password", cfg.Users.UpdatePassword)
	}

	if cfg.Availability != nil {
		protected("GET /users/{id}/availability-rules", cfg.Availability.ListRules)
		protected("POST /users/{id}/availability-rules", cfg.Availability.CreateRule)
		protected("DELETE /users/{id}/availability-rules/{ruleID}", cfg.Availability.DeleteRule)
		protected("GET /users/{id}/unavailabilities", cfg.Availability.ListUnavailabilities)
		protected("POST /users/{id}/unavailabilities", cfg.Availability.CreateUnavailability)
		protected("DELETE /users/{id}/unavailabilities/{unavailabilityID}", cfg.Availability.DeleteUnavailability)
		protected("GET /users/{id}/free-intervals", cfg.Availability.FreeIntervals)
	}

	if cfg.Bands != nil {
		protected("POST /bands", cfg.Bands.Create)
		protected("GET /bands/{id}", cfg.Bands.Get)
		protected("DELETE /bands/{id}", cfg.Bands.Delete)
		protected("GET /bands/{id}/members", cfg.Bands.ListMembers)
		protected("POST /bands/{id}/members", cfg.Bands.Invite)
		protected("PUT /bands/{id}/invitation", cfg.Bands.RespondToInvitation)
	}

	if cfg.Scheduling != nil {
		protected("POST /bands/{id}/slot-suggestions", cfg.Scheduling.SuggestSlots)
		protected("POST /bands/{id}/slot-validations", cfg.Scheduling.ValidateSlot)
	}

	if cfg.Rehearsals != nil {
		protected("GET /bands/{id}/rehearsals", cfg.Rehearsals.List)
		protected("POST /bands/{id}/rehearsals", cfg.Rehearsals.Create)
		protected("GET /rehearsals/{id}", cfg.Rehearsals.Get)
		protected("POST /rehearsals/{id}/cancel", cfg.Rehearsals.Cancel)
		protected("POST /rehearsals/{id}/complete", cfg.Rehearsals.Complete)
		protected("PUT /rehearsals/{id}/response", cfg.Rehearsals.Respond)
		protected("PUT /rehearsals/{id}/attendance/{userID}", cfg.Rehearsals.RecordAttendance)
		protected("GET /rehearsals/{id}/attendees", cfg.Rehearsals.ListAttendees)
		protected("GET /rehearsals/{id}/attendance.xlsx", cfg.Rehearsals.AttendanceWorkbook)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
