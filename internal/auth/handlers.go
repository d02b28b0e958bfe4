package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/authgate/internal/binder"
	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/logger"
	"github.com/dmitrymomot/authgate/internal/response"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

// credentials is the sign-in payload, accepted as JSON or as a plain form.
type credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// isFormRequest reports whether the request came from a plain HTML form
// rather than a JSON API client. The distinction is decided once, from the
// content type, and drives the response style for the whole flow.
func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.Contains(ct, "application/x-www-form-urlencoded") ||
		strings.Contains(ct, "multipart/form-data")
}

// signInFailure renders a sign-in error: a redirect back to the form for
// browser submissions, a JSON error body for API clients.
func signInFailure(form bool, status int, msg string) handler.Response {
	if form {
		return response.RedirectSeeOther("/signin?error=" + url.QueryEscape(msg))
	}
	return response.JSONWithStatus(map[string]string{"error": msg}, status)
}

// SignIn exchanges credentials for a session cookie. Form submissions are
// redirected to the dashboard on success; API clients get the signed-in
// user back as JSON.
func SignIn(s *Service) handler.HandlerFunc {
	return func(ctx *handler.Context) handler.Response {
		r := ctx.Request()
		form := isFormRequest(r)

		var creds credentials
		var err error
		if form {
			err = binder.Form()(r, &creds)
		} else {
			err = binder.JSON()(r, &creds)
		}
		if err != nil {
			return signInFailure(form, http.StatusBadRequest, "Invalid request body")
		}
		if creds.Email == "" || creds.Password == "" {
			return signInFailure(form, http.StatusBadRequest, "Email and password are required")
		}

		sess, err := s.client.Login(r.Context(), creds.Email, creds.Password)
		switch {
		case err == nil:
		case isCredentialsError(err):
			return signInFailure(form, rejectionStatus(err), "Invalid email or password")
		default:
			s.log.ErrorContext(r.Context(), "sign-in failed",
				logger.Event("signin"),
				logger.Error(err),
			)
			return signInFailure(form, http.StatusBadGateway, "Authentication service is unavailable")
		}

		user := s.codec.ExtractUser(sess.Token)
		var userID string
		if user != nil {
			userID = user.ID
		}
		s.log.InfoContext(r.Context(), "signed in",
			logger.Event("signin"),
			logger.UserID(userID),
		)

		var next handler.Response
		if form {
			next = response.RedirectSeeOther("/")
		} else {
			next = response.JSON(map[string]any{
				"success": true,
				"user":    user,
			})
		}

		return func(w http.ResponseWriter, rr *http.Request) error {
			if err := s.StoreSession(w, sess); err != nil {
				return err
			}
			return next(w, rr)
		}
	}
}

// isCredentialsError distinguishes a rejected login from a broken backend.
func isCredentialsError(err error) bool {
	return errors.Is(err, upstream.ErrInvalidCredentials) || errors.Is(err, upstream.ErrNoToken)
}

// rejectionStatus relays the backend's 4xx login status. Rejections that
// carry no status, such as a token-less success response, stay 401.
func rejectionStatus(err error) int {
	var rejected upstream.ErrLoginRejected
	if errors.As(err, &rejected) {
		return rejected.Status
	}
	return http.StatusUnauthorized
}

// SignOut ends the session. The backend is notified best-effort; the
// cookie is cleared no matter what the backend says.
func SignOut(s *Service) handler.HandlerFunc {
	return func(ctx *handler.Context) handler.Response {
		r := ctx.Request()

		if tok, err := s.Token(r); err == nil {
			if err := s.client.Logout(r.Context(), tok); err != nil {
				s.log.WarnContext(r.Context(), "backend logout failed",
					logger.Event("signout"),
					logger.Error(err),
				)
			}
		}

		var next handler.Response
		if isFormRequest(r) {
			next = response.RedirectSeeOther("/signin")
		} else {
			next = response.JSON(map[string]any{"success": true})
		}

		return func(w http.ResponseWriter, rr *http.Request) error {
			s.Clear(w)
			return next(w, rr)
		}
	}
}

// Me returns the user embedded in the current session token. No silent
// refresh happens here; an expired session is simply unauthorized.
func Me(s *Service) handler.HandlerFunc {
	return func(ctx *handler.Context) handler.Response {
		user, err := s.User(ctx.Request())
		if err != nil {
			return response.JSONWithStatus(map[string]string{"error": "Unauthorized"}, http.StatusUnauthorized)
		}
		return response.JSON(user)
	}
}
