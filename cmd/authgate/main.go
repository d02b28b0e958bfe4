package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/authgate/internal/auth"
	"github.com/dmitrymomot/authgate/internal/config"
	"github.com/dmitrymomot/authgate/internal/gateway"
	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/health"
	"github.com/dmitrymomot/authgate/internal/logger"
	"github.com/dmitrymomot/authgate/internal/middleware"
	"github.com/dmitrymomot/authgate/internal/pages"
	"github.com/dmitrymomot/authgate/internal/ratelimit"
	"github.com/dmitrymomot/authgate/internal/response"
	"github.com/dmitrymomot/authgate/internal/router"
	"github.com/dmitrymomot/authgate/internal/server"
	"github.com/dmitrymomot/authgate/internal/sessioncookie"
	"github.com/dmitrymomot/authgate/internal/token"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg)

	log := newLogger(cfg)
	logger.SetAsDefault(log)

	backend, err := upstream.New(cfg.Backend, upstream.WithLogger(log.With(logger.Component("upstream"))))
	if err != nil {
		log.Error("Failed to create backend client", logger.Component("upstream"), logger.Error(err))
		os.Exit(1)
	}

	var cookieOpts []sessioncookie.Option
	if cfg.IsProduction() {
		cookieOpts = append(cookieOpts, sessioncookie.WithSecure(true))
	}
	cookies := sessioncookie.NewFromConfig(cfg.Cookie, cookieOpts...)

	codec := token.NewCodec()
	sessions := auth.NewFromConfig(cfg.Auth, backend, cookies, codec,
		auth.WithLogger(log.With(logger.Component("auth"))))

	gatewayOpts := []gateway.Option{gateway.WithLogger(log.With(logger.Component("gateway")))}
	if cfg.IsProduction() {
		gatewayOpts = append(gatewayOpts, gateway.WithSecureCookies())
	}
	gw := gateway.New(backend, sessions, gatewayOpts...)

	securityHeaders := middleware.SecurityHeaders()
	if !cfg.IsProduction() {
		securityHeaders = middleware.SecurityHeadersWithConfig(middleware.DevelopmentSecurity)
	}

	r := router.New(
		router.WithErrorHandler(errorHandler),
		router.WithMiddleware(
			middleware.RequestID(),
			securityHeaders,
			middleware.Locale(cfg.Locales...),
			middleware.LoggingWithLogger(log.With(logger.Component("http"))),
		),
	)

	// Health check endpoints
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness(log, backend.Healthcheck))

	// Auth API, with sign-in throttled to slow down credential guessing
	signinLimiter := ratelimit.New(ratelimit.Config{
		Capacity:       5,
		RefillRate:     1,
		RefillInterval: 10 * time.Second,
	})
	r.Group(func(api *router.Router) {
		api.Use(middleware.BodyLimitWithSize(64 << 10))
		api.With(middleware.RateLimit(signinLimiter)).Post("/api/auth/signin", auth.SignIn(sessions))
		api.Post("/api/auth/signout", auth.SignOut(sessions))
		api.Get("/api/auth/me", auth.Me(sessions))
	})

	// Proxy endpoint, sized for multipart uploads
	r.With(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		MaxSize: 12 << 20,
		ContentTypeLimit: map[string]int64{
			"multipart/form-data": 32 << 20,
		},
	})).Post("/api/proxy", gw.Proxy())

	// Public pages (an active session is sent back to the dashboard)
	r.Group(func(public *router.Router) {
		public.Use(auth.RequireGuest(sessions))
		public.Get("/signin", pages.SignIn())
	})

	// Protected pages (unauthorized visitors land on the sign-in form)
	r.Group(func(protected *router.Router) {
		protected.Use(auth.RequireAuthWithConfig(sessions, auth.GuardConfig{
			ErrorHandler: func(ctx *handler.Context, err error) handler.Response {
				return response.Redirect("/signin")
			},
		}))
		protected.Get("/", pages.Dashboard())
	})

	eg, ctx := errgroup.WithContext(ctx)

	s, err := server.NewFromConfig(cfg.Server, server.WithLogger(log.With(logger.Component("server"))))
	if err != nil {
		log.Error("Failed to create server", logger.Component("server"), logger.Error(err))
		os.Exit(1)
	}
	eg.Go(s.Run(ctx, r))

	if err := eg.Wait(); err != nil {
		log.Error("Failed to run server", logger.Component("server"), logger.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped")
}

// newLogger builds the process logger for the configured environment.
// LOG_LEVEL, when set, overrides the environment preset's level.
func newLogger(cfg Config) *slog.Logger {
	var opts []logger.Option
	switch cfg.Environment {
	case "production":
		opts = append(opts, logger.WithProduction(cfg.AppName))
	case "staging":
		opts = append(opts, logger.WithStaging(cfg.AppName))
	default:
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}
	if cfg.LogLevel != nil {
		opts = append(opts, logger.WithLevel(*cfg.LogLevel))
	}
	return logger.New(opts...)
}

// errorHandler keeps API failures as JSON and renders everything else as
// an HTML error page.
func errorHandler(ctx *handler.Context, err error) {
	if strings.HasPrefix(ctx.Request().URL.Path, "/api/") {
		response.JSONErrorHandler(ctx, err)
		return
	}
	pages.RenderError(ctx, err)
}
