package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// SessionService signs and verifies the session cookie that persists a
// SessionIdentity between requests.
type SessionService struct {
	cfg            Config
	signingKey     []byte
	cookieDuration time.Duration
	now            func() time.Time
	logger         Logger
	provider       LoggerProvider
}

// SessionServiceOption configures a SessionService
type SessionServiceOption func(*SessionService)

// WithSessionLogger sets the logger
func WithSessionLogger(l Logger) SessionServiceOption {
	return func(s *SessionService) {
		s.provider, s.logger = ResolveLogger("users.session", s.provider, l)
	}
}

// WithSessionLoggerProvider sets the logger provider
func WithSessionLoggerProvider(p LoggerProvider) SessionServiceOption {
	return func(s *SessionService) {
		s.provider, s.logger = ResolveLogger("users.session", p, nil)
	}
}

// WithSessionClock overrides the clock, used in tests
func WithSessionClock(now func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionService creates a SessionService
func NewSessionService(cfg Config, opts ...SessionServiceOption) *SessionService {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	s := &SessionService{
		cfg:            cfg,
		signingKey:     []byte(cfg.GetSigningKey()),
		cookieDuration: cookieDuration,
		now:            time.Now,
	}
	s.provider, s.logger = ResolveLogger("users.session", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CookieName is the session cookie name
func (s *SessionService) CookieName() string {
	return s.cfg.GetContextKey()
}

// Issue signs a session token for a signed in identity
func (s *SessionService) Issue(id *SessionIdentity) (string, error) {
	if !id.IsSignedIn() {
		return "", ErrUnauthenticated
	}

	trueUser := id.True()
	now := s.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.GetIssuer(),
			Subject:   trueUser.ID.String(),
			Audience:  jwt.ClaimStrings(s.cfg.GetAudience()),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cookieDuration)),
		},
		UID:      trueUser.ID.String(),
		UserRole: string(trueUser.Role),
	}

	if acting := id.Acting(); acting != nil {
		claims.ActingID = acting.ID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session")
	}
	return signed, nil
}

// Parse verifies a session token and returns its claims
func (s *SessionService) Parse(tokenString string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(s.now),
	}
	if issuer := s.cfg.GetIssuer(); issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	if aud := s.cfg.GetAudience(); len(aud) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(aud...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("session parse encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, errors.Wrap(err, ErrSessionInvalid.Category, ErrSessionInvalid.Message).
			WithTextCode(ErrSessionInvalid.TextCode).
			WithCode(ErrSessionInvalid.Code)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}

// NeedsRefresh reports whether less than half of the session lifetime is
// left, in which case the cookie should be issued again
func (s *SessionService) NeedsRefresh(claims *SessionClaims) bool {
	expires := claims.Expires()
	issued := claims.IssuedAtTime()
	if expires.IsZero() || issued.IsZero() {
		return false
	}
	return expires.Sub(s.now()) < expires.Sub(issued)/2
}

// Write persists id into the session cookie, or clears the cookie when id
// is anonymous. Token channel identities are never written.
func (s *SessionService) Write(c router.Context, id *SessionIdentity) error {
	if id.Channel() == ChannelToken {
		return nil
	}

	if !id.IsSignedIn() {
		s.Clear(c)
		return nil
	}

	token, err := s.Issue(id)
	if err != nil {
		return err
	}

	c.Cookie(&router.Cookie{
		Name:     s.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(s.cookieDuration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
	return nil
}

// Read returns the raw session token of the request
func (s *SessionService) Read(c router.Context) string {
	return c.Cookies(s.CookieName())
}

// Clear expires the session cookie
func (s *SessionService) Clear(c router.Context) {
	cookieDel(c, s.CookieName())
}

// SetRedirect remembers the rejected route so sign in can return to it
func (s *SessionService) SetRedirect(c router.Context) {
	rejectedRoute := s.cfg.GetRejectedRouteKey()
	if rejectedRoute == "" || strings.ToUpper(c.Method()) != "GET" {
		return
	}

	s.logger.Debug("setting redirect cookie", "key", rejectedRoute, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    c.OriginalURL(),
		Path:     "/",
		Expires:  s.now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect pops the remembered route, falling back to def
func (s *SessionService) GetRedirect(c router.Context, def string) string {
	if def == "" {
		def = s.cfg.GetRejectedRouteDefault()
	}
	rejectedRoute := s.cfg.GetRejectedRouteKey()
	if rejectedRoute == "" {
		return def
	}
	r := c.Cookies(rejectedRoute)
	if r == "" || !isLocalPath(r) {
		return def
	}
	cookieDel(c, rejectedRoute)
	return r
}

func isLocalPath(p string) bool {
	return len(p) > 0 && p[0] == '/' && (len(p) == 1 || (p[1] != '/' && p[1] != '\\'))
}

func cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}
