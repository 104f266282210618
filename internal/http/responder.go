package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
	"github.com/example/rehearsal-scheduler/internal/availability"
	"github.com/example/rehearsal-scheduler/internal/interval"
	"github.com/example/rehearsal-scheduler/internal/lifecycle"
	"github.com/example/rehearsal-scheduler/internal/logging"
	"github.com/example/rehearsal-scheduler/internal/scheduler"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errMissingActor   = errors.New("X-Acting-User header is required")
	errRateLimited    = errors.New("too many requests, try again later")
)

type responder struct {
	logger   *zerolog.Logger
	validate *validator.Validate
}

func newResponder(logger *zerolog.Logger) responder {
	return responder{logger: defaultLogger(logger), validate: newValidator()}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs its struct tag validation. It
// writes the error response itself and reports whether the handler may go on.
func (r responder) decode(w http.ResponseWriter, req *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		r.writeError(req.Context(), w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequestBody, err))
		return false
	}
	if err := r.validate.Struct(dst); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			r.handleServiceError(req.Context(), w, fromValidatorErrors(vErrs))
			return false
		}
		r.writeError(req.Context(), w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger := r.loggerFor(ctx)
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" && status < http.StatusInternalServerError {
			message = msg
		}
		logger := r.loggerFor(ctx)
		logger.Warn().Err(err).Int("status", status).Msg("request failed")
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application and domain errors to status codes.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: application.ErrorKind(err),
			Message:   "request validation failed",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	status := statusFor(err)
	body := errorResponse{ErrorCode: application.ErrorKind(err), Message: http.StatusText(status)}
	if status < http.StatusInternalServerError {
		body.Message = publicMessage(err)
	} else {
		logger := r.loggerFor(ctx)
		logger.Error().Err(err).Msg("unexpected service error")
	}
	r.writeJSON(ctx, w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrUnauthorized),
		errors.Is(err, lifecycle.ErrUnauthorizedTransition):
		return http.StatusForbidden
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrStaleState),
		errors.Is(err, application.ErrAlreadyExists),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, interval.ErrInvalidInterval),
		errors.Is(err, availability.ErrWindowTooLarge),
		errors.Is(err, availability.ErrInvalidRule),
		errors.Is(err, scheduler.ErrNoQuorumMembers),
		errors.Is(err, scheduler.ErrInvalidDuration),
		errors.Is(err, lifecycle.ErrInvalidAttendanceData),
		errors.Is(err, lifecycle.ErrInvalidResponse):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// publicMessage drops the package prefix and any wrapped repository detail.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, application.ErrNotFound):
		return "resource not found"
	case errors.Is(err, application.ErrUnauthorized):
		return "not allowed to perform this operation"
	case errors.Is(err, application.ErrAlreadyExists):
		return "resource already exists"
	case errors.Is(err, application.ErrStaleState):
		return "rehearsal was changed by another request"
	case errors.Is(err, application.ErrInvalidCredentials):
		return "invalid username or password"
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && !strings.Contains(msg[:i], " ") {
		msg = msg[i+2:]
	}
	return msg
}

func fromValidatorErrors(errs validator.ValidationErrors) *application.ValidationError {
	out := &application.ValidationError{FieldErrors: make(map[string]string, len(errs))}
	for _, fe := range errs {
		out.FieldErrors[fieldName(fe)] = validationMessage(fe)
	}
	return out
}

// fieldName strips the request type from the namespace, leaving e.g. "roles[0]".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be formatted as " + fe.Param()
	}
	return "is invalid"
}

func (r responder) loggerFor(ctx context.Context) *zerolog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
