// Package pages serves the minimal server-rendered shells behind the
// gateway: a sign-in form, a dashboard, and the error view used by
// browser-facing routes.
package pages

import (
	"embed"
	"html/template"

	"github.com/dmitrymomot/authgate/internal/auth"
	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/middleware"
	"github.com/dmitrymomot/authgate/internal/response"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// SignIn renders the sign-in form. A failed form submission redirects back
// here with a human-readable reason in the error query parameter.
func SignIn() handler.HandlerFunc {
	return func(ctx *handler.Context) handler.Response {
		return response.TemplateName(templates, "signin", map[string]string{
			"Lang":  pageLang(ctx),
			"Error": ctx.Request().URL.Query().Get("error"),
		})
	}
}

// Dashboard greets the signed-in user. Expects RequireAuth upstream; the
// greeting degrades to anonymous when no identity is in the context.
func Dashboard() handler.HandlerFunc {
	return func(ctx *handler.Context) handler.Response {
		user, _ := auth.CurrentUser(ctx)
		return response.TemplateName(templates, "dashboard", map[string]any{
			"Lang": pageLang(ctx),
			"User": user,
		})
	}
}

// RenderError is the router error handler for browser-facing routes. API
// routes keep their JSON bodies; everything else gets this HTML view.
func RenderError(ctx *handler.Context, err error) {
	httpErr := response.ToHTTPError(err)
	response.Render(ctx, response.TemplateWithStatus(templates.Lookup("error"), map[string]any{
		"Lang":    pageLang(ctx),
		"Status":  httpErr.Status,
		"Message": httpErr.Message,
	}, httpErr.Status))
}

// pageLang returns the request language resolved by the locale middleware.
func pageLang(ctx *handler.Context) string {
	if lang, ok := middleware.GetLocale(ctx); ok {
		return lang
	}
	return "en"
}
