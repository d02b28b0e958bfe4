package middleware

import (
	"context"

	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/locale"
)

// localeContextKey is used as a key for storing the resolved language in request context.
type localeContextKey struct{}

// LocaleConfig configures the locale middleware.
type LocaleConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx *handler.Context) bool
	// Available lists the languages the application can serve (required)
	Available []string
	// Extractor overrides how the language is resolved
	// (default: Accept-Language matching against Available)
	Extractor func(ctx *handler.Context) string
}

// Locale resolves the request language against the available list and
// stores it in the request context.
func Locale(available ...string) handler.Middleware {
	return LocaleWithConfig(LocaleConfig{Available: available})
}

// LocaleWithConfig creates a locale middleware with custom configuration.
func LocaleWithConfig(cfg LocaleConfig) handler.Middleware {
	if len(cfg.Available) == 0 {
		panic("locale middleware: at least one available language is required")
	}
	if cfg.Extractor == nil {
		cfg.Extractor = func(ctx *handler.Context) string {
			return locale.Match(ctx.Request().Header.Get("Accept-Language"), cfg.Available)
		}
	}

	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx *handler.Context) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			lang := cfg.Extractor(ctx)
			if lang == "" {
				lang = cfg.Available[0]
			}
			ctx.SetValue(localeContextKey{}, lang)

			return next(ctx)
		}
	}
}

// GetLocale retrieves the resolved request language from the context.
// Returns the language and a boolean indicating whether it was found.
func GetLocale(ctx context.Context) (string, bool) {
	lang, ok := ctx.Value(localeContextKey{}).(string)
	return lang, ok
}
