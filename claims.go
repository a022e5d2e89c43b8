package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims stored in the session cookie
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	ActingID string `json:"act,omitempty"`
}

// UserID returns the true principal id
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Role returns the true principal role at issue time
func (c *SessionClaims) Role() string {
	return c.UserRole
}

// ActingUserID returns the impersonated principal id, if any
func (c *SessionClaims) ActingUserID() string {
	return c.ActingID
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAtTime returns the issued at time
func (c *SessionClaims) IssuedAtTime() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}
