package application

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/logging"
	"github.com/example/rehearsal-scheduler/internal/scheduler"
)

func defaultLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger != nil {
		return logger
	}
	nop := zerolog.Nop()
	return &nop
}

// serviceLogger prefers the request-scoped logger from ctx over base and
// tags it with the service and operation.
func serviceLogger(ctx context.Context, base *zerolog.Logger, serviceName, operation string, fields map[string]any) zerolog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	lc := logger.With().Str("service", serviceName)
	if operation != "" {
		lc = lc.Str("operation", operation)
	}
	if len(fields) > 0 {
		lc = lc.Fields(fields)
	}
	return lc.Logger()
}

// logOutcome writes one line per operation: error level with error_kind on
// failure, info otherwise.
func logOutcome(logger zerolog.Logger, err error, msg string) {
	if err != nil {
		logger.Error().Err(err).Str("error_kind", ErrorKind(err)).Msg(msg + " failed")
		return
	}
	logger.Info().Msg(msg)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, lifecycle.ErrUnauthorizedTransition):
		return "unauthorized_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrStaleState):
		return "stale_state"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, lifecycle.ErrInvalidAttendanceData):
		return "invalid_attendance_data"
	case errors.Is(err, lifecycle.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, interval.ErrInvalidInterval):
		return "invalid_interval"
	case errors.Is(err, availability.ErrWindowTooLarge):
		return "window_too_large"
	case errors.Is(err, availability.ErrInvalidRule):
		return "invalid_rule"
	case errors.Is(err, scheduler.ErrNoQuorumMembers):
		return "no_quorum_members"
	case errors.Is(err, scheduler.ErrInvalidDuration):
		return "invalid_duration"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
