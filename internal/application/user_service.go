package application

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const userServiceName = "user"

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

// UserService manages accounts. Password hashing happens here, explicitly,
// before anything reaches the repository.
type UserService struct {
	users       UserRepository
	params      Argon2idParams
	idGenerator func() string
	now         func() time.Time
	logger      *zerolog.Logger
}

// NewUserService wires dependencies for the user service. Zero params use
// DefaultArgon2idParams.
func NewUserService(users UserRepository, params Argon2idParams, idGenerator func() string, now func() time.Time, logger *zerolog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if params == (Argon2idParams{}) {
		params = DefaultArgon2idParams
	}
	return &UserService{
		users:       users,
		params:      params,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateUser validates input, hashes the password and stores a new account.
func (s *UserService) CreateUser(ctx context.Context, input UserInput) (_ User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	normalized := normalizeUserInput(input)
	logger := serviceLogger(ctx, s.logger, userServiceName, "create_user", map[string]any{"username": normalized.Username})
	defer func() { logOutcome(logger, err, "user creation") }()

	vErr := validateUserInput(normalized)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := CreatePasswordHash(input.Password, s.params)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	at := s.now()
	created := UserCredentials{
		User: User{
			ID:          s.idGenerator(),
			Username:    normalized.Username,
			Email:       normalized.Email,
			DisplayName: normalized.DisplayName,
			CreatedAt:   at,
			UpdatedAt:   at,
		},
		PasswordHash: hash,
	}
	if s.users == nil {
		return created.User, nil
	}
	if err := s.users.CreateUser(ctx, created); err != nil {
		return User{}, mapRepoError(err)
	}
	return created.User, nil
}

// GetUser returns the public profile of userID to any known principal.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthorized
	}
	if s.users == nil {
		return User{}, ErrNotFound
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err)
	}
	return user.User, nil
}

// Authenticate checks a username and password pair and returns the account.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.users.GetUserByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, mapRepoError(err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user.User, nil
}

// UpdatePassword replaces the principal's own password after checking the
// current one.
func (s *UserService) UpdatePassword(ctx context.Context, params UpdatePasswordParams) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	logger := serviceLogger(ctx, s.logger, userServiceName, "update_password", map[string]any{"user_id": params.UserID})
	defer func() { logOutcome(logger, err, "password update") }()

	if err := requireSelf(params.Principal, params.UserID); err != nil {
		return err
	}
	if len(params.NewPassword) < minPasswordLength {
		return &ValidationError{FieldErrors: map[string]string{
			"new_password": fmt.Sprintf("must be at least %d characters", minPasswordLength),
		}}
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	user, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return mapRepoError(err)
	}
	if err := VerifyPassword(user.PasswordHash, params.CurrentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := CreatePasswordHash(params.NewPassword, s.params)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	return mapRepoError(s.users.UpdateUser(ctx, user))
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Username:    strings.ToLower(strings.TrimSpace(input.Username)),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Password:    input.Password,
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if !usernamePattern.MatchString(input.Username) {
		vErr.add("username", "must be 3-50 letters, digits or underscores")
	}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	if len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	return vErr
}
