package users

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

// IdentityResolver builds the SessionIdentity of each request. The session
// cookie is checked first; the token channel runs only when no session is
// present.
type IdentityResolver struct {
	sessions *SessionService
	users    UserFinder
	tokens   *TokenAuthenticator
	logger   Logger
	provider LoggerProvider
}

// IdentityResolverOption configures an IdentityResolver
type IdentityResolverOption func(*IdentityResolver)

// WithIdentityResolverLogger sets the logger
func WithIdentityResolverLogger(l Logger) IdentityResolverOption {
	return func(r *IdentityResolver) {
		r.provider, r.logger = ResolveLogger("users.identity_resolver", r.provider, l)
	}
}

// WithIdentityResolverLoggerProvider sets the logger provider
func WithIdentityResolverLoggerProvider(p LoggerProvider) IdentityResolverOption {
	return func(r *IdentityResolver) {
		r.provider, r.logger = ResolveLogger("users.identity_resolver", p, nil)
	}
}

// NewIdentityResolver creates an IdentityResolver
func NewIdentityResolver(sessions *SessionService, users UserFinder, tokens *TokenAuthenticator, opts ...IdentityResolverOption) *IdentityResolver {
	r := &IdentityResolver{
		sessions: sessions,
		users:    users,
		tokens:   tokens,
	}
	r.provider, r.logger = ResolveLogger("users.identity_resolver", nil, nil)
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Middleware resolves the identity and stores it on the request
func (r *IdentityResolver) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			SetIdentity(c, r.Resolve(c))
			return next(c)
		}
	}
}

// Resolve builds the identity for a request
func (r *IdentityResolver) Resolve(c router.Context) *SessionIdentity {
	if raw := r.sessions.Read(c); raw != "" {
		if id, ok := r.fromSession(c, raw); ok {
			return id
		}
		r.sessions.Clear(c)
	}

	if r.tokens != nil {
		creds := CredentialsFromRequest(c)
		if creds.Complete() {
			if user, ok := r.tokens.Authenticate(c.Context(), creds); ok {
				return tokenIdentity(user)
			}
			r.logger.Info("token authentication failed", "path", c.Path())
		}
	}

	return NewSessionIdentity()
}

func (r *IdentityResolver) fromSession(c router.Context, raw string) (*SessionIdentity, bool) {
	claims, err := r.sessions.Parse(raw)
	if err != nil {
		r.logger.Info("discarding invalid session", "error", err)
		return nil, false
	}

	ctx := c.Context()
	trueUser, err := r.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if !IsUserNotFound(err) {
			r.logger.Error("session user lookup failed", "error", err)
		}
		return nil, false
	}

	var acting *User
	if actingID := claims.ActingUserID(); actingID != "" {
		acting, err = r.users.FindByID(ctx, actingID)
		if err != nil {
			r.logger.Warn("dropping impersonation, acting user unavailable", "acting_id", actingID, "error", err)
			acting = nil
		}
	}

	id := restoreSessionIdentity(trueUser, acting)
	if r.sessions.NeedsRefresh(claims) {
		if err := r.sessions.Write(c, id); err != nil {
			r.logger.Warn("session refresh failed", "error", err)
		}
	}
	return id, true
}

// RequireSignedIn redirects anonymous browser requests to the sign in page
func RequireSignedIn(sessions *SessionService, loginPath string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if GetIdentity(c).IsSignedIn() {
				return next(c)
			}
			sessions.SetRedirect(c)
			return flashAlert(c, MsgUnauthenticated).Redirect(loginPath, redirectStatus(c))
		}
	}
}

// RequireSessionChannel rejects identities not backed by the session
// cookie, which is the only place impersonation state can live.
func RequireSessionChannel(sessions *SessionService, loginPath string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if GetIdentity(c).Channel() == ChannelSession {
				return next(c)
			}
			sessions.SetRedirect(c)
			return flashAlert(c, MsgUnauthenticated).Redirect(loginPath, redirectStatus(c))
		}
	}
}

// RequireAdmin lets through effective principals allowed to index users,
// which only admins are. Others go back home with an alert.
func RequireAdmin(policy Policy, homePath string) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if policy.Can(CurrentUser(c), ActionIndex, nil) {
				return next(c)
			}
			return flashAlert(c, MsgAdminRequired).Redirect(homePath, redirectStatus(c))
		}
	}
}

// RequireAPIIdentity answers 401 for anonymous API requests
func RequireAPIIdentity() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if GetIdentity(c).IsSignedIn() {
				return next(c)
			}
			return jsonError(c, router.StatusUnauthorized, MsgUnauthenticated)
		}
	}
}

// chain wraps h so the first middleware runs first
func chain(h router.HandlerFunc, mws ...router.MiddlewareFunc) router.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

func redirectStatus(c router.Context) int {
	switch strings.ToUpper(c.Method()) {
	case "GET", "HEAD":
		return http.StatusFound
	}
	return http.StatusSeeOther
}

func jsonError(c router.Context, status int, message string) error {
	return c.JSON(status, map[string]any{"error": message})
}
