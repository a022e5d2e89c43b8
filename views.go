package users

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-router"
)

//go:embed views
var viewsFS embed.FS

// ViewsFS returns the embedded templates rooted at the views directory
func ViewsFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return viewsFS
	}
	return sub
}

// NewViewEngine returns the django engine over the embedded templates.
// Pass a directory to load templates from disk instead, which is handy
// while editing them.
func NewViewEngine(dir ...string) *django.Engine {
	if len(dir) > 0 && dir[0] != "" {
		return django.New(dir[0], ".html")
	}
	return django.NewFileSystem(http.FS(ViewsFS()), ".html")
}

// mergeViewContext returns a copy of base with every key of extra set
func mergeViewContext(base, extra router.ViewContext) router.ViewContext {
	out := make(router.ViewContext, len(base)+len(extra))
	for k, val := range base {
		out[k] = val
	}
	for k, val := range extra {
		out[k] = val
	}
	return out
}
