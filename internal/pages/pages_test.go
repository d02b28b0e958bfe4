package pages_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authgate/internal/auth"
	"github.com/dmitrymomot/authgate/internal/middleware"
	"github.com/dmitrymomot/authgate/internal/pages"
	"github.com/dmitrymomot/authgate/internal/router"
	"github.com/dmitrymomot/authgate/internal/sessioncookie"
	"github.com/dmitrymomot/authgate/internal/token"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

func buildToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".signature"
}

func pagesApp(t *testing.T) *router.Router {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(backend.Close)

	svc := auth.New(
		upstream.MustNew(upstream.Config{BaseURL: backend.URL}),
		sessioncookie.New(),
		token.NewCodec(),
	)

	rt := router.New(
		router.WithErrorHandler(pages.RenderError),
		router.WithMiddleware(middleware.Locale("en", "de")),
	)
	rt.Group(func(gr *router.Router) {
		gr.Use(auth.RequireGuest(svc))
		gr.Get("/signin", pages.SignIn())
	})
	rt.Group(func(gr *router.Router) {
		gr.Use(auth.RequireAuth(svc))
		gr.Get("/", pages.Dashboard())
	})
	return rt
}

func TestSignInPage(t *testing.T) {
	t.Parallel()

	rt := pagesApp(t)

	t.Run("renders the form", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		rt.ServeHTTP(w, httptest.NewRequest("GET", "/signin", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), `action="/api/auth/signin"`)
		assert.NotContains(t, w.Body.String(), "role=\"alert\"")
	})

	t.Run("shows the error query parameter", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		rt.ServeHTTP(w, httptest.NewRequest("GET", "/signin?error=Invalid+email+or+password", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid email or password")
	})

	t.Run("renders the negotiated language", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "/signin", nil)
		req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `<html lang="de">`)
	})

	t.Run("escapes the error parameter", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		rt.ServeHTTP(w, httptest.NewRequest("GET", "/signin?error=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "<script>")
		assert.Contains(t, w.Body.String(), "&lt;script&gt;")
	})

	t.Run("redirects an active session to the dashboard", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "/signin", nil)
		req.AddCookie(&http.Cookie{Name: "auth-token", Value: buildToken(t, map[string]any{
			"sub": "u-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})})
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, req)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	})
}

func TestDashboardPage(t *testing.T) {
	t.Parallel()

	rt := pagesApp(t)

	t.Run("greets the signed-in user", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: "auth-token", Value: buildToken(t, map[string]any{
			"sub":   "u-1",
			"email": "jane@example.com",
			"name":  "Jane",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})})
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Welcome, Jane")
		assert.Contains(t, w.Body.String(), "Signed in as jane@example.com")
		assert.Contains(t, w.Body.String(), `action="/api/auth/signout"`)
	})

	t.Run("renders the error page for anonymous visitors", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		rt.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), "401")
		assert.Contains(t, w.Body.String(), "Unauthorized")
	})
}

func TestRenderErrorPage(t *testing.T) {
	t.Parallel()

	rt := pagesApp(t)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "404")
	assert.Contains(t, w.Body.String(), "Not Found")
}
