package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/rules"
)

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users       persistence.UserRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users persistence.UserRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// CreateUser validates input and persists a new user. Administrators create
// users; the very first user of an empty directory may be created by anyone
// so that a fresh deployment can be bootstrapped.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user persistence.User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "UserService", "CreateUser",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin {
		var bootstrap bool
		if bootstrap, err = s.directoryEmpty(ctx); err != nil {
			return
		}
		if !bootstrap {
			err = ErrAdminRequired
			return
		}
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	user = persistence.User{
		ID:                 s.idGenerator(),
		Name:               normalized.Name,
		Email:              normalized.Email,
		Department:         normalized.Department,
		MaxCapacityAllowed: normalized.MaxCapacityAllowed,
		IsAdmin:            normalized.IsAdmin,
		CreatedAt:          s.now(),
	}
	user.UpdatedAt = user.CreatedAt

	if s.users == nil {
		return
	}

	if err = s.users.CreateUser(ctx, user); err != nil {
		user = persistence.User{}
		if isConstraintViolation(err) {
			vErr := &ValidationError{}
			vErr.add(rules.RuleInvalid, "max_capacity_allowed must be positive")
			err = vErr
			return
		}
		err = mapRepoError(err)
	}
	return
}

// GetUser returns a user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return persistence.User{}, ErrNotFound
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return persistence.User{}, mapRepoError(err)
	}
	return user, nil
}

// ListUsers returns all users ordered by email.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]persistence.User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]persistence.User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})

	return out, nil
}

func (s *UserService) directoryEmpty(ctx context.Context) (bool, error) {
	if s.users == nil {
		return true, nil
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	return len(users) == 0, nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Name:               strings.TrimSpace(input.Name),
		Email:              strings.ToLower(strings.TrimSpace(input.Email)),
		Department:         strings.TrimSpace(input.Department),
		MaxCapacityAllowed: input.MaxCapacityAllowed,
		IsAdmin:            input.IsAdmin,
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add(rules.RulePresence, "name is required")
	}

	if input.Email == "" {
		vErr.add(rules.RulePresence, "email is required")
	} else if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		vErr.add(rules.RuleInvalid, "email is invalid")
	}

	if input.MaxCapacityAllowed <= 0 {
		vErr.add(rules.RuleInvalid, "max_capacity_allowed must be positive")
	}

	return vErr
}

func isConstraintViolation(err error) bool {
	return errors.Is(err, persistence.ErrConstraintViolation)
}
