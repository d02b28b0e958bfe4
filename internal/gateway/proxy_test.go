package gateway_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authgate/internal/auth"
	"github.com/dmitrymomot/authgate/internal/gateway"
	"github.com/dmitrymomot/authgate/internal/router"
	"github.com/dmitrymomot/authgate/internal/sessioncookie"
	"github.com/dmitrymomot/authgate/internal/token"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

var testNow = time.Unix(1700000000, 0)

// tokenExpiringIn builds an unsigned JWT-shaped token relative to the
// fixed test clock.
func tokenExpiringIn(t *testing.T, seconds int64) string {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"sub": "u-1",
		"exp": testNow.Unix() + seconds,
	})
	require.NoError(t, err)

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

// proxyApp wires a gateway against the given backend and mounts it the way
// the binary does.
func proxyApp(t *testing.T, backend http.Handler, opts ...gateway.Option) *router.Router {
	t.Helper()

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := upstream.MustNew(upstream.Config{BaseURL: srv.URL})
	codec := token.NewCodec(token.WithClock(func() time.Time { return testNow }))
	sessions := auth.New(client, sessioncookie.New(), codec)
	gw := gateway.New(client, sessions, opts...)

	rt := router.New()
	rt.Post("/api/proxy", gw.Proxy())
	return rt
}

func jsonProxyCall(payload, sessionToken string) *http.Request {
	req := httptest.NewRequest("POST", "/api/proxy", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: "auth-token", Value: sessionToken})
	}
	return req
}

func TestProxyRejectsMissingURL(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	rt := proxyApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"method":"GET"}`, ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"URL is required"}`, w.Body.String())
	assert.Equal(t, int64(0), calls.Load(), "no upstream call without a destination")
}

func TestProxyRejectsUnsupportedContentType(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	rt := proxyApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	req := httptest.NewRequest("POST", "/api/proxy", strings.NewReader("<soap/>"))
	req.Header.Set("Content-Type", "text/xml")
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Unsupported content type"}`, w.Body.String())
	assert.Equal(t, int64(0), calls.Load())
}

func TestProxyForwardsJSONCall(t *testing.T) {
	t.Parallel()

	sessionToken := tokenExpiringIn(t, 600)
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "Bearer "+sessionToken, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"espresso"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":7}`))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/items","body":{"name":"espresso"}}`, sessionToken))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":7}`, w.Body.String())
}

func TestProxyWithoutSessionSendsNoAuthorization(t *testing.T) {
	t.Parallel()

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"public":true}`))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/public"}`, ""))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProxyLanguageHeader(t *testing.T) {
	t.Parallel()

	t.Run("explicit language wins", func(t *testing.T) {
		t.Parallel()

		backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "de", r.Header.Get("X-Language"))
			w.Write([]byte("ok"))
		})
		rt := proxyApp(t, backend)

		req := jsonProxyCall(`{"url":"/api/items","language":"de"}`, "")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("first accept-language tag is the fallback", func(t *testing.T) {
		t.Parallel()

		backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "uk-UA", r.Header.Get("X-Language"))
			w.Write([]byte("ok"))
		})
		rt := proxyApp(t, backend)

		req := jsonProxyCall(`{"url":"/api/items"}`, "")
		req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,en;q=0.8")
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no language information sends no header", func(t *testing.T) {
		t.Parallel()

		backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, present := r.Header["X-Language"]
			assert.False(t, present)
			w.Write([]byte("ok"))
		})
		rt := proxyApp(t, backend)

		w := httptest.NewRecorder()
		rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/items"}`, ""))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestProxyGetSerializesBodyAsQuery(t *testing.T) {
	t.Parallel()

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "espresso", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Empty(t, body, "get carries no body")
		w.Write([]byte("ok"))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(
		`{"url":"/api/search","method":"GET","body":{"q":"espresso","page":2}}`, ""))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProxyCapturesIssuedToken(t *testing.T) {
	t.Parallel()

	// The backend answers with a token in the Authorization header; the
	// browser must get a cookie instead and never see the header itself.
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Authorization", "Bearer abc123")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/session"}`, ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Authorization"), "bearer token must not reach the browser")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth-token", cookies[0].Name)
	assert.Equal(t, "abc123", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestProxyRefreshesOnceOn401(t *testing.T) {
	t.Parallel()

	stale := tokenExpiringIn(t, -60)
	fresh := tokenExpiringIn(t, 900)

	var targetCalls, refreshCalls atomic.Int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls.Add(1)
			assert.Equal(t, "Bearer "+stale, r.Header.Get("Authorization"), "refresh carries the same headers")
			w.Header().Set("Authorization", "Bearer "+fresh)
		case "/api/orders":
			n := targetCalls.Add(1)
			if n == 1 {
				require.Equal(t, "Bearer "+stale, r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			require.Equal(t, "Bearer "+fresh, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"orders":[]}`))
		default:
			t.Errorf("unexpected backend path %s", r.URL.Path)
		}
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/orders"}`, stale))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orders":[]}`, w.Body.String())
	assert.Equal(t, int64(2), targetCalls.Load(), "exactly two calls to the target")
	assert.Equal(t, int64(1), refreshCalls.Load(), "exactly one refresh")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, fresh, cookies[0].Value, "refreshed token reaches the cookie")
	assert.Equal(t, 900, cookies[0].MaxAge)
}

func TestProxyRelays401WhenRefreshFails(t *testing.T) {
	t.Parallel()

	var targetCalls, refreshCalls atomic.Int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		targetCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"session expired"}`))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/orders"}`, tokenExpiringIn(t, -60)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"session expired"}`, w.Body.String())
	assert.Equal(t, int64(1), targetCalls.Load(), "no retry without a fresh token")
	assert.Equal(t, int64(1), refreshCalls.Load(), "exactly one refresh attempt")
}

func TestProxyNeverRetriesTwice(t *testing.T) {
	t.Parallel()

	fresh := tokenExpiringIn(t, 900)
	var targetCalls atomic.Int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			w.Header().Set("Authorization", "Bearer "+fresh)
			return
		}
		targetCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"still unauthorized"}`))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/orders"}`, tokenExpiringIn(t, -60)))

	assert.Equal(t, http.StatusUnauthorized, w.Code, "second 401 is relayed as-is")
	assert.Equal(t, int64(2), targetCalls.Load(), "the target is never called a third time")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, fresh, cookies[0].Value, "the refreshed token is kept despite the retry outcome")
}

func TestProxyWithout401DoesNotRefresh(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int64
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshCalls.Add(1)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"not yours"}`))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/orders/3"}`, tokenExpiringIn(t, 600)))

	assert.Equal(t, http.StatusForbidden, w.Code, "non-401 statuses pass through")
	assert.Equal(t, int64(0), refreshCalls.Load())
}

func TestProxyRewritesBackendCookies(t *testing.T) {
	t.Parallel()

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     "session_id",
			Value:    "xyz",
			Domain:   "api.internal",
			Path:     "/v2",
			Secure:   true,
			HttpOnly: true,
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})

	t.Run("outside production", func(t *testing.T) {
		t.Parallel()

		rt := proxyApp(t, backend)
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/session"}`, ""))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, "session_id", c.Name)
		assert.Equal(t, "xyz", c.Value)
		assert.Empty(t, c.Domain, "backend domain is dropped")
		assert.Equal(t, "/", c.Path, "path is widened to the whole site")
		assert.False(t, c.Secure, "secure is stripped outside production")
		assert.True(t, c.HttpOnly)
	})

	t.Run("in production", func(t *testing.T) {
		t.Parallel()

		rt := proxyApp(t, backend, gateway.WithSecureCookies())
		w := httptest.NewRecorder()
		rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/session"}`, ""))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].Secure, "secure survives in production")
		assert.Empty(t, cookies[0].Domain)
	})
}

func TestProxyRelaysJSONBody(t *testing.T) {
	t.Parallel()

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Total-Count", "42")
		w.Write([]byte("{ \"items\" :\n[1, 2] }"))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/items","method":"GET"}`, ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[1,2]}`, w.Body.String())
	assert.Equal(t, "42", w.Header().Get("X-Total-Count"), "upstream headers pass through")
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestProxyStreamsNonJSONBody(t *testing.T) {
	t.Parallel()

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="report.csv"`)
		w.Write([]byte("a,b\n1,2\n"))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/export","method":"GET"}`, ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a,b\n1,2\n", w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report.csv"`, w.Header().Get("Content-Disposition"))
}

func TestProxyForwardsMultipartForm(t *testing.T) {
	t.Parallel()

	sessionToken := tokenExpiringIn(t, 600)
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload", r.URL.Path)
		assert.Equal(t, "Bearer "+sessionToken, r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, []string{"hello"}, r.MultipartForm.Value["note"])
		assert.Empty(t, r.MultipartForm.Value["proxy_url"], "descriptor fields are not forwarded")

		files := r.MultipartForm.File["attachment"]
		require.Len(t, files, 1)
		assert.Equal(t, "report.csv", files[0].Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uploaded":true}`))
	})
	rt := proxyApp(t, backend)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("proxy_url", "/api/upload"))
	require.NoError(t, mw.WriteField("note", "hello"))
	part, err := mw.CreateFormFile("attachment", "report.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/proxy", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "auth-token", Value: sessionToken})
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"uploaded":true}`, w.Body.String())
}

func TestProxyUnreachableBackendIsGeneric500(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := upstream.MustNew(upstream.Config{BaseURL: srv.URL})
	codec := token.NewCodec(token.WithClock(func() time.Time { return testNow }))
	gw := gateway.New(client, auth.New(client, sessioncookie.New(), codec))

	rt := router.New()
	rt.Post("/api/proxy", gw.Proxy())

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/items"}`, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestProxyInvalidUpstreamJSONIs500(t *testing.T) {
	t.Parallel()

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"broken`))
	})
	rt := proxyApp(t, backend)

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, jsonProxyCall(`{"url":"/api/items"}`, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
