package users

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	// MsgUnauthenticated is shown when a request carries no valid identity
	MsgUnauthenticated = "You need to sign in or sign up before continuing."
	// MsgAdminRequired is shown when a signed in user lacks the admin role
	MsgAdminRequired = "You must be an admin to perform that action"
	// MsgForbidden is returned for self-only rules on the JSON API
	MsgForbidden = "You are not authorized to perform that action"
	// MsgSomethingWentWrong is the browser flash for failed writes
	MsgSomethingWentWrong = "Something went wrong!"
	// MsgInvalidLogin is shown on failed sign in
	MsgInvalidLogin = "Invalid email or password."
)

const (
	TextCodeUnauthenticated  = "UNAUTHENTICATED"
	TextCodeAdminRequired    = "ADMIN_REQUIRED"
	TextCodeForbidden        = "FORBIDDEN"
	TextCodeUserNotFound     = "USER_NOT_FOUND"
	TextCodeValidationFailed = "VALIDATION_FAILED"
	TextCodeInvalidLogin     = "INVALID_LOGIN"
	TextCodeSessionInvalid   = "SESSION_INVALID"
)

// ErrUnauthenticated no identity could be resolved for the request
var ErrUnauthenticated = errors.New(MsgUnauthenticated, errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrAdminRequired the acting principal is not an admin
var ErrAdminRequired = errors.New(MsgAdminRequired, errors.CategoryAuthz).
	WithTextCode(TextCodeAdminRequired).
	WithCode(errors.CodeForbidden)

// ErrForbidden the principal may not act on the resource
var ErrForbidden = errors.New(MsgForbidden, errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrUserNotFound the requested user does not exist
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword wrong email or password
var ErrMismatchedHashAndPassword = errors.New(MsgInvalidLogin, errors.CategoryAuth).
	WithTextCode(TextCodeInvalidLogin).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// ErrSessionInvalid the session cookie could not be verified
var ErrSessionInvalid = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(errors.CodeUnauthorized)

// NewValidationError builds a 422 error carrying per field messages in
// the "fields" metadata key.
func NewValidationError(fields map[string]string) *errors.Error {
	meta := make(map[string]any, 1)
	meta["fields"] = fields
	return errors.New("validation failed", errors.CategoryValidation).
		WithTextCode(TextCodeValidationFailed).
		WithCode(http.StatusUnprocessableEntity).
		WithMetadata(meta)
}

// ValidationFields returns the field messages of a validation error.
func ValidationFields(err error) (map[string]string, bool) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr.Category != errors.CategoryValidation {
		return nil, false
	}
	fields, ok := richErr.Metadata["fields"].(map[string]string)
	return fields, ok
}

// IsUserNotFound reports whether err is a missing user error
func IsUserNotFound(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeUserNotFound
	}
	return false
}
