package users

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

const identityLocalsKey = "users.identity"

// WithContext sets the effective User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the effective user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithIdentityContext sets the SessionIdentity in the given context
func WithIdentityContext(r context.Context, id *SessionIdentity) context.Context {
	return context.WithValue(r, identityCtxKey, id)
}

// IdentityFromContext finds the SessionIdentity in the context
func IdentityFromContext(ctx context.Context) (*SessionIdentity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(*SessionIdentity)
	return raw, ok && raw != nil
}

// SetIdentity stores the request identity in the router locals and the
// request context.
func SetIdentity(c router.Context, id *SessionIdentity) {
	c.Locals(identityLocalsKey, id)
	ctx := WithIdentityContext(c.Context(), id)
	ctx = WithContext(ctx, id.Current())
	c.SetContext(ctx)
}

// GetIdentity returns the request identity, anonymous when none was set
func GetIdentity(c router.Context) *SessionIdentity {
	if id, ok := c.Locals(identityLocalsKey).(*SessionIdentity); ok && id != nil {
		return id
	}
	if ctx := c.Context(); ctx != nil {
		if id, ok := IdentityFromContext(ctx); ok {
			return id
		}
	}
	return NewSessionIdentity()
}

// CurrentUser returns the effective principal of the request
func CurrentUser(c router.Context) *User {
	return GetIdentity(c).Current()
}
