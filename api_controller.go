package users

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// APIUsersController serves the JSON users resource. Requests authenticate
// with the session cookie or the email and token pair.
type APIUsersController struct {
	Debug    bool
	Logger   Logger
	Routes   Routes
	Policy   Policy
	Users    *UserService
	Recorder *Recorder
	Errors   router.MiddlewareFunc
}

// NewAPIUsersController creates an APIUsersController from the module
func NewAPIUsersController(m *Module) *APIUsersController {
	return &APIUsersController{
		Debug:    m.Debug,
		Logger:   m.Logger("users.api_controller"),
		Routes:   m.Routes,
		Policy:   APIPolicy,
		Users:    m.Users,
		Recorder: m.Recorder,
		Errors:   m.HandleErrors(),
	}
}

// RegisterAPIUserRoutes mounts the JSON routes
func RegisterAPIUserRoutes[T any](r router.Router[T], c *APIUsersController) {
	base := c.Routes.APIUsers
	api := func(h router.HandlerFunc) router.HandlerFunc {
		return chain(h, c.Errors, RequireAPIIdentity())
	}

	r.Get(base, api(c.Index)).SetName("users.api.index")
	r.Post(base, api(c.Create)).SetName("users.api.create")
	r.Get(base+"/:id", api(c.Show)).SetName("users.api.show")
	r.Put(base+"/:id", api(c.Update)).SetName("users.api.update")
	r.Patch(base+"/:id", api(c.Update))
	r.Delete(base+"/:id", api(c.Destroy)).SetName("users.api.destroy")
}

// Index lists users
func (a *APIUsersController) Index(ctx router.Context) error {
	current := CurrentUser(ctx)
	if !a.Policy.Can(current, ActionIndex, nil) {
		return ErrAdminRequired
	}

	records, err := a.Users.List(ctx.Context())
	if err != nil {
		return err
	}

	a.Recorder.Record(ctx.Context(), current, ActivityUsersListed, "", map[string]any{
		AttrCount: len(records),
	})

	return ctx.JSON(router.StatusOK, NewUserViews(records))
}

// Show returns a single user. Non admins may only read themselves.
func (a *APIUsersController) Show(ctx router.Context) error {
	current := CurrentUser(ctx)

	ref, err := resourceRef(ctx.Param("id"))
	if err != nil {
		return err
	}

	if !a.Policy.Can(current, ActionRead, ref) {
		return ErrForbidden
	}

	user, err := a.Users.Get(ctx.Context(), ref.ID.String())
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, NewUserView(user))
}

// Create stores a user and answers 201 with the new record
func (a *APIUsersController) Create(ctx router.Context) error {
	current := CurrentUser(ctx)
	if !a.Policy.Can(current, ActionCreate, nil) {
		return ErrAdminRequired
	}

	payload, err := decodeUserRequest[CreateUserPayload](ctx)
	if err != nil {
		a.Logger.Debug("create user decode body", "error", err)
		return jsonError(ctx, fiber.StatusBadRequest, "malformed user payload")
	}

	if payload.HasRole() && !a.Policy.Can(current, ActionAssignRole, nil) {
		return ErrAdminRequired
	}

	a.dump("API CREATE USER", map[string]string{"email": payload.Email, "role": payload.Role})

	user, err := a.Users.Create(ctx.Context(), payload)
	if err != nil {
		return err
	}

	a.Recorder.Record(ctx.Context(), current, ActivityUserCreated, user.ID.String(), map[string]any{
		AttrUserEmail: user.Email,
	})

	return ctx.JSON(fiber.StatusCreated, NewUserView(user))
}

// Update applies a partial change and answers 204
func (a *APIUsersController) Update(ctx router.Context) error {
	current := CurrentUser(ctx)

	ref, err := resourceRef(ctx.Param("id"))
	if err != nil {
		return err
	}

	if !a.Policy.Can(current, ActionUpdate, ref) {
		return ErrForbidden
	}

	payload, err := decodeUserRequest[UpdateUserPayload](ctx)
	if err != nil {
		a.Logger.Debug("update user decode body", "error", err)
		return jsonError(ctx, fiber.StatusBadRequest, "malformed user payload")
	}

	if payload.HasRole() && !a.Policy.Can(current, ActionAssignRole, ref) {
		return ErrAdminRequired
	}

	user, err := a.Users.Update(ctx.Context(), ref.ID.String(), payload)
	if err != nil {
		return err
	}

	a.Recorder.Record(ctx.Context(), current, ActivityUserUpdated, user.ID.String(), map[string]any{
		AttrUserEmail: user.Email,
	})

	return ctx.NoContent(fiber.StatusNoContent)
}

// Destroy removes a user and answers 204
func (a *APIUsersController) Destroy(ctx router.Context) error {
	current := CurrentUser(ctx)

	ref, err := resourceRef(ctx.Param("id"))
	if err != nil {
		return err
	}

	if !a.Policy.Can(current, ActionDestroy, ref) {
		return ErrAdminRequired
	}

	if err := a.Users.Destroy(ctx.Context(), ref.ID.String()); err != nil {
		return err
	}

	a.Recorder.Record(ctx.Context(), current, ActivityUserDestroyed, ref.ID.String(), nil)

	return ctx.NoContent(fiber.StatusNoContent)
}

func (a *APIUsersController) dump(title string, v any) {
	if !a.Debug {
		return
	}
	fmt.Printf("======= %s ======\n", title)
	fmt.Println(print.MaybePrettyJSON(v))
	fmt.Println(strings.Repeat("=", len(title)+16))
}

// resourceRef is enough of a user for the policy to compare ids. A
// malformed id can never exist.
func resourceRef(id string) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrUserNotFound
	}
	return &User{ID: uid}, nil
}

// decodeUserRequest reads the user from the JSON body. Form bodies and
// requests without a body carry it as user[field] parameters instead.
func decodeUserRequest[T any](ctx router.Context) (T, error) {
	body := bytes.TrimSpace(ctx.Body())

	if strings.HasPrefix(strings.ToLower(ctx.Header(fiber.HeaderContentType)), fiber.MIMEApplicationForm) {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			var out T
			return out, err
		}
		params := make(map[string]string, len(values))
		for key := range values {
			params[key] = values.Get(key)
		}
		if out, ok, err := DecodeUserParams[T](params); ok || err != nil {
			return out, err
		}
	}

	if len(body) == 0 {
		if out, ok, err := DecodeUserParams[T](ctx.Queries()); ok || err != nil {
			return out, err
		}
	}

	return DecodeUserBody[T](body)
}
