package users

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// SessionController serves sign in, sign out and the home page
type SessionController struct {
	Debug    bool
	Logger   Logger
	Routes   Routes
	Sessions *SessionService
	Accounts *UserProvider
	Recorder *Recorder
	Views    *SessionViews
	Errors   router.MiddlewareFunc
}

// SessionViews names the templates used by the session controller
type SessionViews struct {
	Home  string
	Login string
}

// NewSessionController creates a SessionController from the module
func NewSessionController(m *Module) *SessionController {
	return &SessionController{
		Debug:    m.Debug,
		Logger:   m.Logger("users.session_controller"),
		Routes:   m.Routes,
		Sessions: m.Sessions,
		Accounts: m.Accounts,
		Recorder: m.Recorder,
		Views: &SessionViews{
			Home:  "home",
			Login: "login",
		},
		Errors: m.HandleErrors(),
	}
}

// RegisterSessionRoutes mounts the session routes
func RegisterSessionRoutes[T any](r router.Router[T], c *SessionController) {
	r.Get(c.Routes.Home, chain(c.Home, c.Errors)).SetName("users.home")
	r.Get(c.Routes.Login, chain(c.LoginShow, c.Errors)).SetName("users.login.show")
	r.Post(c.Routes.Login, chain(c.LoginPost, c.Errors)).SetName("users.login.post")
	r.Get(c.Routes.Logout, chain(c.Logout, c.Errors)).SetName("users.logout")
}

// Home shows who is signed in and whether they are impersonating
func (a *SessionController) Home(ctx router.Context) error {
	return render(ctx, a.Routes, a.Views.Home, nil)
}

// LoginShow renders the sign in form
func (a *SessionController) LoginShow(ctx router.Context) error {
	return render(ctx, a.Routes, a.Views.Login, router.ViewContext{"email": ""})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginPost signs the user in, replacing any previous session
func (a *SessionController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return flashError(ctx, MsgInvalidLogin).Redirect(a.Routes.Login, http.StatusSeeOther)
	}

	if err := payload.Validate(); err != nil {
		return flashError(ctx, MsgInvalidLogin).Redirect(a.Routes.Login, http.StatusSeeOther)
	}

	user, err := a.Accounts.VerifyCredentials(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Info("sign in rejected", "error", err)
		return flashError(ctx, MsgInvalidLogin).Redirect(a.Routes.Login, http.StatusSeeOther)
	}

	id := GetIdentity(ctx)
	id.SignIn(user)
	if err := a.Sessions.Write(ctx, id); err != nil {
		return err
	}

	a.Recorder.Record(ctx.Context(), user, ActivitySignedIn, user.ID.String(), nil)

	return ctx.Redirect(a.Sessions.GetRedirect(ctx, a.Routes.Home), http.StatusSeeOther)
}

// Logout clears the session, including any impersonation
func (a *SessionController) Logout(ctx router.Context) error {
	id := GetIdentity(ctx)
	if user := id.True(); user != nil && id.Channel() == ChannelSession {
		a.Recorder.Record(ctx.Context(), user, ActivitySignedOut, user.ID.String(), nil)
	}
	id.SignOut()
	a.Sessions.Clear(ctx)
	return ctx.Redirect(a.Routes.Home, http.StatusFound)
}

// AdminUsersController is the browser admin for users
type AdminUsersController struct {
	Debug    bool
	Logger   Logger
	Routes   Routes
	Policy   Policy
	Users    *UserService
	Identity *IdentityManager
	Sessions *SessionService
	Recorder *Recorder
	Views    *AdminUsersViews
	Errors   router.MiddlewareFunc
}

// AdminUsersViews names the templates used by the admin controller
type AdminUsersViews struct {
	Index string
	New   string
	Edit  string
}

// NewAdminUsersController creates an AdminUsersController from the module
func NewAdminUsersController(m *Module) *AdminUsersController {
	return &AdminUsersController{
		Debug:    m.Debug,
		Logger:   m.Logger("users.admin_controller"),
		Routes:   m.Routes,
		Policy:   BrowserPolicy,
		Users:    m.Users,
		Identity: m.Identity,
		Sessions: m.Sessions,
		Recorder: m.Recorder,
		Views: &AdminUsersViews{
			Index: "admin/users/index",
			New:   "admin/users/new",
			Edit:  "admin/users/edit",
		},
		Errors: m.HandleErrors(),
	}
}

// RegisterAdminUserRoutes mounts the admin routes. Stopping an
// impersonation only needs a session; everything else needs an admin.
func RegisterAdminUserRoutes[T any](r router.Router[T], c *AdminUsersController) {
	signedIn := RequireSignedIn(c.Sessions, c.Routes.Login)
	sessionOnly := RequireSessionChannel(c.Sessions, c.Routes.Login)
	admin := RequireAdmin(c.Policy, c.Routes.Home)

	base := c.Routes.AdminUsers
	adminOnly := func(h router.HandlerFunc) router.HandlerFunc {
		return chain(h, c.Errors, signedIn, admin)
	}

	r.Get(base+"/stop_impersonating", chain(c.StopImpersonating, c.Errors, signedIn, sessionOnly)).
		SetName("users.admin.stop_impersonating")

	r.Get(base, adminOnly(c.Index)).SetName("users.admin.index")
	r.Get(base+"/new", adminOnly(c.New)).SetName("users.admin.new")
	r.Post(base, adminOnly(c.Create)).SetName("users.admin.create")
	r.Post(base+"/new", adminOnly(c.Create))
	r.Get(base+"/:id/edit", adminOnly(c.Edit)).SetName("users.admin.edit")
	r.Put(base+"/:id/edit", adminOnly(c.Update))
	r.Get(base+"/:id/impersonate", chain(c.Impersonate, c.Errors, signedIn, sessionOnly, admin)).
		SetName("users.admin.impersonate")
	r.Put(base+"/:id", adminOnly(c.Update)).SetName("users.admin.update")
	r.Patch(base+"/:id", adminOnly(c.Update))
	r.Post(base+"/:id", adminOnly(c.Update))
}

// Index lists users as HTML, or JSON when the client asks for it
func (a *AdminUsersController) Index(ctx router.Context) error {
	current := CurrentUser(ctx)

	records, err := a.Users.List(ctx.Context())
	if err != nil {
		return err
	}

	a.Recorder.Record(ctx.Context(), current, ActivityUsersListed, "", map[string]any{
		AttrCount: len(records),
	})

	views := NewUserViews(records)

	if wantsJSON(ctx, "") {
		return ctx.JSON(router.StatusOK, views)
	}

	return render(ctx, a.Routes, a.Views.Index, router.ViewContext{"users": views})
}

// New renders the create form
func (a *AdminUsersController) New(ctx router.Context) error {
	return render(ctx, a.Routes, a.Views.New, nil)
}

// Create stores a user from the form
func (a *AdminUsersController) Create(ctx router.Context) error {
	current := CurrentUser(ctx)
	newPath := a.Routes.AdminUsers + "/new"

	form := new(UserForm)
	if err := ctx.Bind(form); err != nil {
		a.Logger.Error("create user parse payload", "error", err)
		return flashError(ctx, MsgSomethingWentWrong).Redirect(newPath, http.StatusSeeOther)
	}

	payload := form.CreatePayload()

	if a.Debug {
		fmt.Println("======= ADMIN CREATE USER ======")
		fmt.Println(print.MaybePrettyJSON(map[string]string{"email": payload.Email, "role": payload.Role}))
		fmt.Println("================================")
	}

	if !a.Policy.Can(current, ActionCreate, nil) ||
		(payload.HasRole() && !a.Policy.Can(current, ActionAssignRole, nil)) {
		return flashAlert(ctx, MsgAdminRequired).Redirect(a.Routes.Home, http.StatusSeeOther)
	}

	user, err := a.Users.Create(ctx.Context(), payload)
	if err != nil {
		if _, ok := ValidationFields(err); ok {
			return flashError(ctx, MsgSomethingWentWrong).Redirect(newPath, http.StatusSeeOther)
		}
		return err
	}

	a.Recorder.Record(ctx.Context(), current, ActivityUserCreated, user.ID.String(), map[string]any{
		AttrUserEmail: user.Email,
	})

	return flashSuccess(ctx, fmt.Sprintf("Successfully created user: %s!", user.Email)).
		Redirect(a.Routes.AdminUsers, http.StatusSeeOther)
}

// Edit renders the edit form
func (a *AdminUsersController) Edit(ctx router.Context) error {
	user, err := a.Users.Get(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	if !a.Policy.Can(CurrentUser(ctx), ActionUpdate, user) {
		return flashAlert(ctx, MsgAdminRequired).Redirect(a.Routes.Home, http.StatusFound)
	}

	return render(ctx, a.Routes, a.Views.Edit, router.ViewContext{"record": NewUserView(user)})
}

// Update applies the edit form
func (a *AdminUsersController) Update(ctx router.Context) error {
	current := CurrentUser(ctx)
	userID := ctx.Param("id")
	editPath := fmt.Sprintf("%s/%s/edit", a.Routes.AdminUsers, userID)

	target, err := a.Users.Get(ctx.Context(), userID)
	if err != nil {
		return err
	}

	form := new(UserForm)
	if err := ctx.Bind(form); err != nil {
		a.Logger.Error("update user parse payload", "error", err)
		return flashError(ctx, MsgSomethingWentWrong).Redirect(editPath, http.StatusSeeOther)
	}

	payload := form.UpdatePayload()

	if !a.Policy.Can(current, ActionUpdate, target) ||
		(payload.HasRole() && !a.Policy.Can(current, ActionAssignRole, target)) {
		return flashAlert(ctx, MsgAdminRequired).Redirect(a.Routes.Home, http.StatusSeeOther)
	}

	user, err := a.Users.Update(ctx.Context(), target.ID.String(), payload)
	if err != nil {
		if _, ok := ValidationFields(err); ok {
			return flashError(ctx, MsgSomethingWentWrong).Redirect(editPath, http.StatusSeeOther)
		}
		return err
	}

	a.Recorder.Record(ctx.Context(), current, ActivityUserUpdated, user.ID.String(), map[string]any{
		AttrUserEmail: user.Email,
	})

	return flashSuccess(ctx, fmt.Sprintf("Successfully updated %s!", user.Email)).
		Redirect(a.Routes.AdminUsers, http.StatusSeeOther)
}

// Impersonate starts acting as the user and goes home
func (a *AdminUsersController) Impersonate(ctx router.Context) error {
	target, err := a.Users.Get(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	id := GetIdentity(ctx)
	if err := a.Identity.StartImpersonation(ctx.Context(), id, target); err != nil {
		if err == ErrAdminRequired {
			return flashAlert(ctx, MsgAdminRequired).Redirect(a.Routes.Home, http.StatusFound)
		}
		if err == ErrUnauthenticated {
			return flashAlert(ctx, MsgUnauthenticated).Redirect(a.Routes.Login, http.StatusFound)
		}
		return err
	}

	if err := a.Sessions.Write(ctx, id); err != nil {
		return err
	}
	SetIdentity(ctx, id)

	return ctx.Redirect(a.Routes.Home, http.StatusFound)
}

// StopImpersonating returns to the true user and goes back to the list
func (a *AdminUsersController) StopImpersonating(ctx router.Context) error {
	id := GetIdentity(ctx)
	if err := a.Identity.StopImpersonation(ctx.Context(), id); err != nil {
		return err
	}

	if err := a.Sessions.Write(ctx, id); err != nil {
		return err
	}
	SetIdentity(ctx, id)

	return ctx.Redirect(a.Routes.AdminUsers, http.StatusFound)
}
