package auth

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/logger"
	"github.com/dmitrymomot/authgate/internal/response"
	"github.com/dmitrymomot/authgate/internal/token"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

// identityContextKey is used as a key for storing the authenticated user
// in the request context.
type identityContextKey struct{}

// GuardConfig configures the route guards.
type GuardConfig struct {
	// Skip defines a function to skip the guard for specific requests
	Skip func(ctx *handler.Context) bool
	// ErrorHandler renders the response for rejected requests
	ErrorHandler func(ctx *handler.Context, err error) handler.Response
}

// RequireAuth creates a guard that only admits requests with a verified
// session. A token that fails verification gets exactly one silent refresh
// attempt before the request is rejected.
func RequireAuth(s *Service) handler.Middleware {
	return RequireAuthWithConfig(s, GuardConfig{})
}

// RequireAuthWithConfig creates an authentication guard with custom
// rejection handling. Panics if the service is not provided.
func RequireAuthWithConfig(s *Service, cfg GuardConfig) handler.Middleware {
	if s == nil {
		panic("auth guard: service is required")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx *handler.Context, err error) handler.Response {
			return response.Error(response.ErrUnauthorized)
		}
	}

	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx *handler.Context) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			tok, err := s.Token(ctx.Request())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			verdict := s.Verify(ctx, tok)
			refreshed, err := s.refreshOnce(ctx, tok, verdict)
			if err != nil {
				return rejectClearing(s, ctx, cfg, err)
			}
			if refreshed != nil {
				verdict = s.codec.VerifyLocally(refreshed.Token)
				if !verdict.Valid {
					return rejectClearing(s, ctx, cfg, ErrInvalidSession)
				}
			}

			ctx.SetValue(identityContextKey{}, verdict.User)
			resp := next(ctx)
			if refreshed == nil {
				return resp
			}

			// The refreshed token must reach the cookie before the
			// endpoint's response writes the header.
			return func(w http.ResponseWriter, r *http.Request) error {
				if err := s.StoreSession(w, refreshed); err != nil {
					s.log.Error("failed to store refreshed session", logger.Error(err))
				}
				return resp(w, r)
			}
		}
	}
}

// rejectClearing renders the rejection response with the dead session
// cookie removed, so the client does not resubmit a token that already
// failed its one refresh.
func rejectClearing(s *Service, ctx *handler.Context, cfg GuardConfig, cause error) handler.Response {
	resp := cfg.ErrorHandler(ctx, cause)
	return func(w http.ResponseWriter, r *http.Request) error {
		s.Clear(w)
		return resp(w, r)
	}
}

// refreshOnce trades an unverifiable token for a fresh one. Returns nil
// without error when the current token is already good.
func (s *Service) refreshOnce(ctx context.Context, tok string, verdict token.Verification) (*upstream.Session, error) {
	if verdict.Valid {
		return nil, nil
	}

	sess, err := s.client.RefreshToken(ctx, tok)
	if err != nil {
		s.log.DebugContext(ctx, "session refresh rejected", logger.Error(err))
		return nil, ErrInvalidSession
	}
	return sess, nil
}

// RequireGuest creates a guard that rejects requests carrying a valid
// session. Meant for pages like the sign-in form; the default rejection
// redirects to the dashboard.
func RequireGuest(s *Service) handler.Middleware {
	return RequireGuestWithConfig(s, GuardConfig{})
}

// RequireGuestWithConfig creates a guest-only guard with custom rejection
// handling. Panics if the service is not provided.
func RequireGuestWithConfig(s *Service, cfg GuardConfig) handler.Middleware {
	if s == nil {
		panic("auth guard: service is required")
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx *handler.Context, err error) handler.Response {
			return response.Redirect("/")
		}
	}

	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx *handler.Context) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			tok, err := s.Token(ctx.Request())
			if err != nil {
				return next(ctx)
			}

			// An expired token counts as a guest; no refresh here.
			if s.codec.IsValid(tok) {
				return cfg.ErrorHandler(ctx, ErrAlreadyAuthenticated)
			}
			return next(ctx)
		}
	}
}

// CurrentUser retrieves the authenticated user stored by RequireAuth.
func CurrentUser(ctx context.Context) (*token.User, bool) {
	u, ok := ctx.Value(identityContextKey{}).(*token.User)
	if !ok || u == nil {
		return nil, false
	}
	return u, true
}
