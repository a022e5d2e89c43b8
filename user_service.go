package users

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserService applies validated changes to the user store. Authorization
// is the caller's job.
type UserService struct {
	repo      RepositoryManager
	passwords PasswordAuthenticator
	newID     func(email string) (uuid.UUID, error)
	logger    Logger
	provider  LoggerProvider
}

// UserServiceOption configures a UserService
type UserServiceOption func(*UserService)

// WithUserServiceLogger sets the logger
func WithUserServiceLogger(l Logger) UserServiceOption {
	return func(s *UserService) {
		s.provider, s.logger = ResolveLogger("users.service", s.provider, l)
	}
}

// WithUserServiceLoggerProvider sets the logger provider
func WithUserServiceLoggerProvider(p LoggerProvider) UserServiceOption {
	return func(s *UserService) {
		s.provider, s.logger = ResolveLogger("users.service", p, nil)
	}
}

// WithPasswordAuthenticator overrides password hashing
func WithPasswordAuthenticator(p PasswordAuthenticator) UserServiceOption {
	return func(s *UserService) {
		if p != nil {
			s.passwords = p
		}
	}
}

// WithUserIDGenerator derives ids for new users from their email. The
// default is a random UUID.
func WithUserIDGenerator(fn func(email string) (uuid.UUID, error)) UserServiceOption {
	return func(s *UserService) {
		s.newID = fn
	}
}

// NewUserService creates a UserService
func NewUserService(repo RepositoryManager, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:      repo,
		passwords: BcryptPasswords,
	}
	s.provider, s.logger = ResolveLogger("users.service", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// List returns every user
func (s *UserService) List(ctx context.Context) ([]*User, error) {
	return s.repo.Users().ListUsers(ctx)
}

// Get returns a single user or ErrUserNotFound
func (s *UserService) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Users().FindByID(ctx, id)
}

// Create validates the payload and stores a new user
func (s *UserService) Create(ctx context.Context, payload CreateUserPayload) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(FormatValidationErrorToMap(err))
	}

	role := RoleUser
	if payload.HasRole() {
		role, _ = ParseRole(payload.Role)
	}

	hash, err := s.passwords.HashPassword(payload.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	record := &User{
		Email:        NormalizeEmail(payload.Email),
		FirstName:    strings.TrimSpace(payload.FirstName),
		LastName:     strings.TrimSpace(payload.LastName),
		Role:         role,
		PasswordHash: hash,
	}

	if s.newID != nil {
		id, err := s.newID(record.Email)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate user id")
		}
		record.ID = id
	}

	var created *User
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.ensureEmailAvailable(ctx, tx, record.Email, ""); err != nil {
			return err
		}
		var err error
		created, err = s.repo.Users().CreateTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, s.wrap(err, "could not create user")
	}

	s.logger.Info("user created", s.actorAttrs(ctx, "user_id", created.ID.String(), "role", string(created.Role))...)
	return created, nil
}

// Update validates the payload and applies it to the user
func (s *UserService) Update(ctx context.Context, id string, payload UpdateUserPayload) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, NewValidationError(FormatValidationErrorToMap(err))
	}

	var updated *User
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.repo.Users().FindByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if payload.IsEmpty() {
			updated = record
			return nil
		}

		if payload.Email != nil {
			email := NormalizeEmail(*payload.Email)
			if email != record.Email {
				if err := s.ensureEmailAvailable(ctx, tx, email, record.ID.String()); err != nil {
					return err
				}
			}
			record.Email = email
		}
		if payload.FirstName != nil {
			record.FirstName = strings.TrimSpace(*payload.FirstName)
		}
		if payload.LastName != nil {
			record.LastName = strings.TrimSpace(*payload.LastName)
		}
		if payload.Role != nil {
			record.Role, _ = ParseRole(*payload.Role)
		}
		if payload.Password != nil && *payload.Password != "" {
			hash, err := s.passwords.HashPassword(*payload.Password)
			if err != nil {
				return errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
			}
			record.PasswordHash = hash
		}

		updated, err = s.repo.Users().SaveTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return nil, s.wrap(err, "could not update user")
	}

	s.logger.Info("user updated", s.actorAttrs(ctx, "user_id", updated.ID.String())...)
	return updated, nil
}

// Destroy removes a user
func (s *UserService) Destroy(ctx context.Context, id string) error {
	if err := s.repo.Users().Remove(ctx, id); err != nil {
		return s.wrap(err, "could not delete user")
	}
	s.logger.Info("user deleted", s.actorAttrs(ctx, "user_id", id)...)
	return nil
}

// RegenerateToken issues a new API token for the user
func (s *UserService) RegenerateToken(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.Users().RegenerateToken(ctx, id)
	if err != nil {
		return nil, s.wrap(err, "could not regenerate token")
	}
	return user, nil
}

func (s *UserService) ensureEmailAvailable(ctx context.Context, tx bun.IDB, email, exceptID string) error {
	existing, err := s.repo.Users().FindByEmailTx(ctx, tx, email)
	if err != nil {
		if IsUserNotFound(err) {
			return nil
		}
		return err
	}
	if exceptID != "" && existing.ID.String() == exceptID {
		return nil
	}
	return NewValidationError(map[string]string{"email": MsgEmailTaken})
}

// actorAttrs appends the acting user carried on ctx, if any.
func (s *UserService) actorAttrs(ctx context.Context, attrs ...any) []any {
	if actor, ok := FromContext(ctx); ok && actor != nil {
		attrs = append(attrs, "actor_id", actor.ID.String())
	}
	return attrs
}

func (s *UserService) wrap(err error, msg string) error {
	if isEmailTaken(err) {
		return NewValidationError(map[string]string{"email": MsgEmailTaken})
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryInternal, msg)
}

// isEmailTaken reports whether err is a unique index violation on the
// users table other than the token index. Some drivers drop the index
// name, so an unnamed violation counts as the email index.
func isEmailTaken(err error) bool {
	if err == nil {
		return false
	}

	duplicate := repository.IsDuplicatedKey(err)
	var detail strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := strings.ToLower(e.Error())
		if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
			duplicate = true
		}
		detail.WriteString(msg)
	}

	var retryable *errors.RetryableError
	if errors.As(err, &retryable) && retryable.BaseError != nil {
		if constraint, ok := retryable.Metadata["constraint"].(string); ok {
			detail.WriteString(strings.ToLower(constraint))
		}
	}

	return duplicate && !strings.Contains(detail.String(), "authentication_token")
}
