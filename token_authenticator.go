package users

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/goliatone/go-router"
)

const (
	HeaderUserEmail = "X-User-Email"
	HeaderUserToken = "X-User-Token"
	QueryUserEmail  = "user_email"
	QueryUserToken  = "user_token"
)

// Credentials is an email and API token pair
type Credentials struct {
	Email string
	Token string
}

// Complete reports whether both values are present
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Email) != "" && c.Token != ""
}

// CredentialsFromRequest extracts the token pair. The header pair wins when
// both headers are set, otherwise the query pair is used. Values are never
// mixed across the two sources.
func CredentialsFromRequest(c router.Context) Credentials {
	header := Credentials{
		Email: c.Header(HeaderUserEmail),
		Token: c.Header(HeaderUserToken),
	}
	if header.Complete() {
		return header
	}

	return Credentials{
		Email: c.Query(QueryUserEmail, ""),
		Token: c.Query(QueryUserToken, ""),
	}
}

// TokenAuthenticator verifies email plus token credentials against the
// user store.
type TokenAuthenticator struct {
	users    UserFinder
	logger   Logger
	provider LoggerProvider
}

// TokenAuthenticatorOption configures a TokenAuthenticator
type TokenAuthenticatorOption func(*TokenAuthenticator)

// WithTokenAuthenticatorLogger sets the logger
func WithTokenAuthenticatorLogger(l Logger) TokenAuthenticatorOption {
	return func(t *TokenAuthenticator) {
		t.provider, t.logger = ResolveLogger("users.token_authenticator", t.provider, l)
	}
}

// WithTokenAuthenticatorLoggerProvider sets the logger provider
func WithTokenAuthenticatorLoggerProvider(p LoggerProvider) TokenAuthenticatorOption {
	return func(t *TokenAuthenticator) {
		t.provider, t.logger = ResolveLogger("users.token_authenticator", p, nil)
	}
}

// NewTokenAuthenticator creates a TokenAuthenticator
func NewTokenAuthenticator(users UserFinder, opts ...TokenAuthenticatorOption) *TokenAuthenticator {
	t := &TokenAuthenticator{users: users}
	t.provider, t.logger = ResolveLogger("users.token_authenticator", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Authenticate returns the user owning the credentials. The boolean is
// false for any failure, including store errors.
func (t *TokenAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*User, bool) {
	if !creds.Complete() {
		return nil, false
	}

	user, err := t.users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if !IsUserNotFound(err) {
			t.logger.Error("token authentication lookup failed", "error", err)
		}
		// keep timing comparable to the found path
		tokensMatch(creds.Token, "")
		return nil, false
	}

	if user.AuthenticationToken == "" {
		tokensMatch(creds.Token, "")
		return nil, false
	}

	if !tokensMatch(creds.Token, user.AuthenticationToken) {
		return nil, false
	}

	return user, true
}

// tokensMatch compares fixed size digests so neither the content nor the
// length of the stored token leaks through timing.
func tokensMatch(given, stored string) bool {
	a := sha256.Sum256([]byte(given))
	b := sha256.Sum256([]byte(stored))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1 && stored != ""
}
