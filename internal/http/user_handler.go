package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
)

type userService interface {
	CreateUser(ctx context.Context, input application.UserInput) (application.User, error)
	GetUser(ctx context.Context, principal application.Principal, userID string) (application.User, error)
	Authenticate(ctx context.Context, username, password string) (application.User, error)
	UpdatePassword(ctx context.Context, params application.UpdatePasswordParams) error
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *zerolog.Logger
}

func NewUserHandler(service userService, logger *zerolog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string) zerolog.Logger {
	return handlerLogger(ctx, h.logger, "UserHandler", operation)
}

// Create registers an account. It is reachable without an acting user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req createUserRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	logger := h.log(r.Context(), "Create")
	user, err := h.service.CreateUser(r.Context(), application.UserInput{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("user creation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("user_id", user.ID).Msg("user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

// Authenticate checks a username and password pair for the upstream gateway.
func (h *UserHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req authenticateRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		notConfigured(w)
		return
	}

	var req updatePasswordRequest
	if !h.responder.decode(w, r, &req) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "UpdatePassword").With().Str("user_id", userID).Logger()

	err := h.service.UpdatePassword(r.Context(), application.UpdatePasswordParams{
		Principal:       principal,
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("password update failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Msg("password updated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,min=8"`
}

type authenticateRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type userDTO struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   formatTime(user.CreatedAt),
		UpdatedAt:   formatTime(user.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func notConfigured(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
