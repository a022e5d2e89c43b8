package users

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/goliatone/go-errors"
)

const authenticationTokenBytes = 32

// GenerateAuthenticationToken returns an opaque API token
func GenerateAuthenticationToken() (string, error) {
	buf := make([]byte, authenticationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate authentication token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
