package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storepos-backend/pkg/config"
	"github.com/angelmondragon/storepos-backend/pkg/db"
	"github.com/angelmondragon/storepos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storepos-backend/pkg/errors"
	"github.com/angelmondragon/storepos-backend/pkg/security"
)

const minPasswordLength = 8

// Service manages staff accounts.
type Service interface {
	Create(ctx context.Context, input CreateUserInput) (*UserDTO, error)
	Get(ctx context.Context, id int64) (*UserDTO, error)
	List(ctx context.Context, includeInactive bool) ([]UserDTO, error)
	SetActive(ctx context.Context, id int64, active bool) (*UserDTO, error)
	Update(ctx context.Context, id int64, input UpdateUserInput) (*UserDTO, error)
	ChangePassword(ctx context.Context, id int64, current, next string) error
}

type CreateUserInput struct {
	Username string
	Password string
	FullName string
	Email    *string
	Role     enums.UserRole
}

// UpdateUserInput carries a partial profile change. Nil fields are left as
// they are; an empty Email clears it.
type UpdateUserInput struct {
	FullName *string
	Email    *string
	Role     *enums.UserRole
}

// StaffRevocations blocks outstanding tokens of deactivated staff.
type StaffRevocations interface {
	RevokeStaff(ctx context.Context, userID int64, ttl time.Duration) error
	RestoreStaff(ctx context.Context, userID int64) error
}

// Option customizes the user service.
type Option func(*service)

// WithRevocations makes SetActive revoke or restore the user's tokens.
// ttl should match the access token lifetime.
func WithRevocations(store StaffRevocations, ttl time.Duration) Option {
	return func(s *service) {
		s.revocations = store
		s.revocationTTL = ttl
	}
}

type service struct {
	repo          *Repository
	passwordCfg   config.PasswordConfig
	revocations   StaffRevocations
	revocationTTL time.Duration
}

func NewService(repo *Repository, passwordCfg config.PasswordConfig, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	svc := &service{repo: repo, passwordCfg: passwordCfg}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *service) Create(ctx context.Context, input CreateUserInput) (*UserDTO, error) {
	username := NormalizeUsername(input.Username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", input.Role))
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	var email *string
	if input.Email != nil {
		if trimmed := strings.TrimSpace(*input.Email); trimmed != "" {
			email = &trimmed
		}
	}

	user, err := s.repo.Create(ctx, CreateUserDTO{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		Email:        email,
		Role:         input.Role,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "username") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "username already taken").
				WithDetails(map[string]any{"username": username})
		}
		return nil, db.Classify(err, "db: insert user")
	}
	return FromModel(user), nil
}

func (s *service) Get(ctx context.Context, id int64) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
		}
		return nil, db.Classify(err, "db: load user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, includeInactive bool) ([]UserDTO, error) {
	rows, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, db.Classify(err, "db: list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) SetActive(ctx context.Context, id int64, active bool) (*UserDTO, error) {
	found, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, db.Classify(err, "db: update user")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
	}
	if s.revocations != nil {
		var revErr error
		if active {
			revErr = s.revocations.RestoreStaff(ctx, id)
		} else {
			revErr = s.revocations.RevokeStaff(ctx, id, s.revocationTTL)
		}
		// The flag is already stored; a retry of the same call is safe.
		if revErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, revErr, "update staff token revocation")
		}
	}
	return s.Get(ctx, id)
}

// Update changes profile fields. Role changes reach the actor's token on the
// next login.
func (s *service) Update(ctx context.Context, id int64, input UpdateUserInput) (*UserDTO, error) {
	changes := map[string]any{}
	if input.FullName != nil {
		fullName := strings.TrimSpace(*input.FullName)
		if fullName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name cannot be blank")
		}
		changes["full_name"] = fullName
	}
	if input.Email != nil {
		if trimmed := strings.TrimSpace(*input.Email); trimmed != "" {
			changes["email"] = trimmed
		} else {
			changes["email"] = nil
		}
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", *input.Role))
		}
		changes["role"] = *input.Role
	}
	if len(changes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	found, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, db.Classify(err, "db: update user")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
	}
	return s.Get(ctx, id)
}

// ChangePassword replaces the password after checking the current one.
func (s *service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len(next) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if next == current {
		return pkgerrors.New(pkgerrors.CodeValidation, "new password must differ from the current one")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("user %d not found", id))
		}
		return db.Classify(err, "db: load user")
	}
	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "current password is incorrect")
	}

	hash, err := security.HashPassword(next, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	swapped, err := s.repo.UpdatePasswordHash(ctx, id, user.PasswordHash, hash)
	if err != nil {
		return db.Classify(err, "db: update password")
	}
	if !swapped {
		return pkgerrors.New(pkgerrors.CodeConflict, "password changed concurrently")
	}
	return nil
}

// NormalizeUsername trims and lowercases a login name.
func NormalizeUsername(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
