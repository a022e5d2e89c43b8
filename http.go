package users

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
)

// Routes holds the paths the module mounts
type Routes struct {
	Home       string
	Login      string
	Logout     string
	AdminUsers string
	APIUsers   string
}

// DefaultRoutes returns the stock paths
func DefaultRoutes() Routes {
	return Routes{
		Home:       "/",
		Login:      "/login",
		Logout:     "/logout",
		AdminUsers: "/admin/users",
		APIUsers:   "/api/v1/users",
	}
}

// Module wires the services and controllers of the user admin
type Module struct {
	Debug    bool
	Routes   Routes
	Config   Config
	Repo     RepositoryManager
	Sessions *SessionService
	Tokens   *TokenAuthenticator
	Resolver *IdentityResolver
	Identity *IdentityManager
	Recorder *Recorder
	Users    *UserService
	Accounts *UserProvider

	logger        Logger
	provider      LoggerProvider
	sink          ActivitySink
	recordTimeout time.Duration
	recordBuffer  int
}

// ModuleOption configures a Module
type ModuleOption func(*Module)

// WithModuleLoggerProvider sets the logger provider shared by every
// component
func WithModuleLoggerProvider(p LoggerProvider) ModuleOption {
	return func(m *Module) {
		m.provider = p
	}
}

// WithModuleRoutes overrides the mounted paths
func WithModuleRoutes(r Routes) ModuleOption {
	return func(m *Module) {
		m.Routes = r
	}
}

// WithModuleDebug enables debug dumps
func WithModuleDebug(debug bool) ModuleOption {
	return func(m *Module) {
		m.Debug = debug
	}
}

// WithModuleActivitySink sets where audit events go
func WithModuleActivitySink(sink ActivitySink) ModuleOption {
	return func(m *Module) {
		m.sink = sink
	}
}

// WithModuleRecordTimeout bounds each audit sink call
func WithModuleRecordTimeout(d time.Duration) ModuleOption {
	return func(m *Module) {
		m.recordTimeout = d
	}
}

// WithModuleRecordBuffer sets how many audit events may wait for the sink
func WithModuleRecordBuffer(size int) ModuleOption {
	return func(m *Module) {
		m.recordBuffer = size
	}
}

// NewModule builds every service over the repository manager
func NewModule(cfg Config, repo RepositoryManager, opts ...ModuleOption) *Module {
	m := &Module{
		Routes: DefaultRoutes(),
		Config: cfg,
		Repo:   repo,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.provider, m.logger = ResolveLogger("users.http", m.provider, nil)

	m.Recorder = NewRecorder(m.sink,
		WithRecorderLoggerProvider(m.provider),
		WithRecorderTimeout(m.recordTimeout),
		WithRecorderBuffer(m.recordBuffer),
	)
	m.Sessions = NewSessionService(cfg, WithSessionLoggerProvider(m.provider))
	m.Tokens = NewTokenAuthenticator(repo.Users(), WithTokenAuthenticatorLoggerProvider(m.provider))
	m.Resolver = NewIdentityResolver(m.Sessions, repo.Users(), m.Tokens, WithIdentityResolverLoggerProvider(m.provider))
	m.Identity = NewIdentityManager(m.Recorder, WithIdentityManagerLoggerProvider(m.provider))
	m.Users = NewUserService(repo, WithUserServiceLoggerProvider(m.provider))
	m.Accounts = NewUserProvider(repo.Users()).WithLoggerProvider(m.provider)

	return m
}

// Logger returns a named logger from the module provider
func (m *Module) Logger(name string) Logger {
	_, l := ResolveLogger(name, m.provider, nil)
	return l
}

// Close stops the audit recorder after it drains queued events
func (m *Module) Close() error {
	return m.Recorder.Close()
}

// RegisterModule mounts the flash and identity middleware and every
// controller of m on r
func RegisterModule[T any](r router.Router[T], m *Module) {
	r.Use(mflash.New(mflash.ConfigDefault))
	r.Use(m.Resolver.Middleware())

	RegisterSessionRoutes(r, NewSessionController(m))
	RegisterAdminUserRoutes(r, NewAdminUsersController(m))
	RegisterAPIUserRoutes(r, NewAPIUsersController(m))
}

// NewServer returns a fiber backed server with the views and every route
// of the module mounted
func (m *Module) NewServer(cfgs ...fiber.Config) router.Server[*fiber.App] {
	cfg := fiber.Config{}
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.Views == nil {
		cfg.Views = NewViewEngine()
	}
	cfg.PassLocalsToViews = true

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(cfg))
	})

	RegisterModule(srv.Router(), m)
	return srv
}

// HandleErrors sends errors returned by the wrapped handler through
// ErrorHandler
func (m *Module) HandleErrors() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if err := next(c); err != nil {
				return m.ErrorHandler(c, err)
			}
			return nil
		}
	}
}

// ErrorHandler renders rich errors as JSON for API clients and as an HTML
// page otherwise
func (m *Module) ErrorHandler(c router.Context, err error) error {
	var richErr *errors.Error
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &richErr):
	case errors.As(err, &fiberErr):
		richErr = wrapStatus(err, fiberErr.Code, fiberErr.Message)
	default:
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		m.logger.Error("request failed",
			"error", richErr.Message,
			"category", richErr.Category,
			"path", c.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	} else {
		m.logger.Debug("request rejected", "error", richErr.Message, "status", status, "path", c.OriginalURL())
	}

	message := richErr.Message
	if status >= 500 {
		message = http.StatusText(status)
	}

	if wantsJSON(c, m.Routes.APIUsers) {
		if fields, ok := ValidationFields(richErr); ok {
			return c.JSON(status, map[string]any{"errors": fields})
		}
		return jsonError(c, status, message)
	}

	if renderErr := c.Status(status).Render("errors/error", router.ViewContext{
		"status":  status,
		"message": message,
	}); renderErr != nil {
		return c.Status(status).SendString(message)
	}
	return nil
}

func wrapStatus(err error, status int, msg string) *errors.Error {
	var out *errors.Error
	switch status {
	case http.StatusNotFound:
		out = errors.Wrap(err, errors.CategoryNotFound, msg)
	case http.StatusUnauthorized:
		out = errors.Wrap(err, errors.CategoryAuth, msg)
	case http.StatusForbidden:
		out = errors.Wrap(err, errors.CategoryAuthz, msg)
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		out = errors.Wrap(err, errors.CategoryBadInput, msg)
	default:
		out = errors.Wrap(err, errors.CategoryInternal, msg)
	}
	return out.WithCode(status)
}

// wantsJSON is true under the API prefix or when the client prefers JSON
// over HTML
func wantsJSON(c router.Context, apiPrefix string) bool {
	if apiPrefix != "" && strings.HasPrefix(c.Path(), apiPrefix) {
		return true
	}
	accept := strings.ToLower(c.Header(fiber.HeaderAccept))
	jsonAt := strings.Index(accept, fiber.MIMEApplicationJSON)
	if jsonAt < 0 {
		return false
	}
	htmlAt := strings.Index(accept, fiber.MIMETextHTML)
	return htmlAt < 0 || jsonAt < htmlAt
}
