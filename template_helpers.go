package users

import "github.com/goliatone/go-router"

// TemplateUserKey is where the effective user lands in the view context
var TemplateUserKey = "current"

// TemplateHelpers returns the view data every page shares: flash messages,
// both identity slots and the module paths.
//
// In templates you can then use:
//
//	{% if impersonating %}{{ true_user.Email }} as {{ current.Email }}{% endif %}
//	{% if can_manage %}<a href="{{ admin_path }}">Manage users</a>{% endif %}
func TemplateHelpers(c router.Context, routes Routes) router.ViewContext {
	id := GetIdentity(c)
	return router.ViewContext{
		"flash":         GetFlash(c),
		"signed_in":     id.IsSignedIn(),
		"impersonating": id.IsImpersonating(),
		TemplateUserKey: NewUserView(id.Current()),
		"true_user":     NewUserView(id.True()),
		"can_manage":    BrowserPolicy.Can(id.Current(), ActionIndex, nil),
		"roles":         roleNames(),
		"home_path":     routes.Home,
		"login_path":    routes.Login,
		"logout_path":   routes.Logout,
		"admin_path":    routes.AdminUsers,
		"base_path":     routes.AdminUsers,
		"new_path":      routes.AdminUsers + "/new",
		"stop_path":     routes.AdminUsers + "/stop_impersonating",
	}
}

// render merges data over the shared helpers and renders name
func render(c router.Context, routes Routes, name string, data router.ViewContext) error {
	return c.Render(name, mergeViewContext(TemplateHelpers(c, routes), data))
}

func roleNames() []string {
	roles := ValidRoles()
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
