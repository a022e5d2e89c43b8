package users

import (
	"context"

	"github.com/goliatone/go-errors"
)

// UserProvider verifies email and password sign in attempts
type UserProvider struct {
	store     UserFinder
	passwords PasswordAuthenticator
	logger    Logger
	provider  LoggerProvider
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserFinder) *UserProvider {
	provider, logger := ResolveLogger("users.user_provider", nil, nil)
	return &UserProvider{
		store:     store,
		passwords: BcryptPasswords,
		logger:    logger,
		provider:  provider,
	}
}

// WithLogger sets the logger
func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.provider, u.logger = ResolveLogger("users.user_provider", u.provider, l)
	return u
}

// WithLoggerProvider overrides the logger provider used by the user provider.
func (u *UserProvider) WithLoggerProvider(provider LoggerProvider) *UserProvider {
	u.provider, u.logger = ResolveLogger("users.user_provider", provider, nil)
	return u
}

// WithPasswords overrides password comparison
func (u *UserProvider) WithPasswords(p PasswordAuthenticator) *UserProvider {
	if p != nil {
		u.passwords = p
	}
	return u
}

// VerifyCredentials will find the user and compare the password
func (u *UserProvider) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		if IsUserNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user.PasswordHash == "" {
		return nil, ErrMismatchedHashAndPassword
	}

	if err := u.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrMismatchedHashAndPassword
		}
		u.logger.Error("password comparison failed", "user_id", user.ID.String(), "error", err)
		return nil, ErrMismatchedHashAndPassword
	}

	if !user.Role.IsValid() {
		return nil, errors.New("user has an unknown or invalid role", errors.CategoryAuth).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": string(user.Role), "user_id": user.ID.String()})
	}

	return user, nil
}
