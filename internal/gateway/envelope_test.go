package gateway_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authgate/internal/binder"
	"github.com/dmitrymomot/authgate/internal/gateway"
)

func jsonEnvelopeRequest(body string) *http.Request {
	req := httptest.NewRequest("POST", "/api/proxy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestParseEnvelopeJSON(t *testing.T) {
	t.Parallel()

	t.Run("decodes the call description", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(
			`{"url":"/api/items","method":"put","body":{"name":"espresso"},"language":"de"}`))
		require.NoError(t, err)

		je, ok := env.(*gateway.JSONEnvelope)
		require.True(t, ok)
		assert.Equal(t, "/api/items", je.Target())
		assert.Equal(t, http.MethodPut, je.Method(), "method is upper-cased")
		assert.Equal(t, "de", je.Language())
	})

	t.Run("method defaults to post", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(`{"url":"/api/items"}`))
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, env.Method())
	})

	t.Run("unknown fields pass unremarked", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(
			`{"url":"/api/items","extra":"ignored","headers":{"X-Custom":"1"}}`))
		require.NoError(t, err)
		assert.Equal(t, "/api/items", env.Target())
	})

	t.Run("missing url is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := gateway.ParseEnvelope(jsonEnvelopeRequest(`{"method":"GET"}`))
		assert.ErrorIs(t, err, gateway.ErrMissingURL)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := gateway.ParseEnvelope(jsonEnvelopeRequest(`{"url":`))
		assert.ErrorIs(t, err, gateway.ErrInvalidEnvelope)
	})

	t.Run("unsupported content type is rejected", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("POST", "/api/proxy", strings.NewReader("<xml/>"))
		req.Header.Set("Content-Type", "text/xml")
		_, err := gateway.ParseEnvelope(req)
		assert.ErrorIs(t, err, binder.ErrUnsupportedMediaType)
	})
}

func TestJSONEnvelopeMaterialize(t *testing.T) {
	t.Parallel()

	t.Run("post keeps the body verbatim", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(
			`{"url":"/api/items","body":{"b":2,"a":1}}`))
		require.NoError(t, err)

		path, body, contentType, err := env.Materialize()
		require.NoError(t, err)
		assert.Equal(t, "/api/items", path)
		assert.JSONEq(t, `{"a":1,"b":2}`, string(body))
		assert.Equal(t, "application/json", contentType)
	})

	t.Run("absent body sends nothing", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(`{"url":"/api/items"}`))
		require.NoError(t, err)

		_, body, contentType, err := env.Materialize()
		require.NoError(t, err)
		assert.Empty(t, body)
		assert.Empty(t, contentType)
	})

	t.Run("get folds the body into query parameters", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(
			`{"url":"/api/search","method":"GET","body":{"q":"latte art","page":2,"all":true}}`))
		require.NoError(t, err)

		path, body, contentType, err := env.Materialize()
		require.NoError(t, err)
		assert.Empty(t, body)
		assert.Empty(t, contentType)

		parsed, err := url.Parse(path)
		require.NoError(t, err)
		assert.Equal(t, "/api/search", parsed.Path)
		assert.Equal(t, "latte art", parsed.Query().Get("q"))
		assert.Equal(t, "2", parsed.Query().Get("page"))
		assert.Equal(t, "true", parsed.Query().Get("all"))
	})

	t.Run("get respects an existing query string", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(
			`{"url":"/api/search?sort=asc","method":"GET","body":{"q":"x"}}`))
		require.NoError(t, err)

		path, _, _, err := env.Materialize()
		require.NoError(t, err)

		parsed, err := url.Parse(path)
		require.NoError(t, err)
		assert.Equal(t, "asc", parsed.Query().Get("sort"))
		assert.Equal(t, "x", parsed.Query().Get("q"))
	})

	t.Run("get with a non-object body is rejected", func(t *testing.T) {
		t.Parallel()

		env, err := gateway.ParseEnvelope(jsonEnvelopeRequest(
			`{"url":"/api/search","method":"GET","body":[1,2]}`))
		require.NoError(t, err)

		_, _, _, err = env.Materialize()
		assert.ErrorIs(t, err, gateway.ErrInvalidEnvelope)
	})
}

// multipartEnvelopeRequest builds a form post with the given descriptor
// fields, one extra value field, and one file.
func multipartEnvelopeRequest(t *testing.T, descriptor map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, v := range descriptor {
		require.NoError(t, mw.WriteField(name, v))
	}
	require.NoError(t, mw.WriteField("note", "hello"))
	part, err := mw.CreateFormFile("attachment", "report.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/proxy", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseEnvelopeForm(t *testing.T) {
	t.Parallel()

	t.Run("splits descriptor fields from forwarded ones", func(t *testing.T) {
		t.Parallel()

		req := multipartEnvelopeRequest(t, map[string]string{
			"proxy_url":      "/api/upload",
			"proxy_method":   "put",
			"proxy_language": "uk",
		})
		env, err := gateway.ParseEnvelope(req)
		require.NoError(t, err)

		fe, ok := env.(*gateway.FormEnvelope)
		require.True(t, ok)
		assert.Equal(t, "/api/upload", fe.Target())
		assert.Equal(t, http.MethodPut, fe.Method())
		assert.Equal(t, "uk", fe.Language())

		assert.Equal(t, []string{"hello"}, fe.Fields["note"])
		assert.NotContains(t, fe.Fields, "proxy_url")
		assert.NotContains(t, fe.Fields, "proxy_method")
		assert.NotContains(t, fe.Fields, "proxy_language")
		require.Len(t, fe.Files["attachment"], 1)
		assert.Equal(t, "report.csv", fe.Files["attachment"][0].Filename)
	})

	t.Run("missing proxy_url is rejected", func(t *testing.T) {
		t.Parallel()

		req := multipartEnvelopeRequest(t, map[string]string{"proxy_method": "POST"})
		_, err := gateway.ParseEnvelope(req)
		assert.ErrorIs(t, err, gateway.ErrMissingURL)
	})

	t.Run("urlencoded forms parse the same way", func(t *testing.T) {
		t.Parallel()

		form := url.Values{"proxy_url": {"/api/notes"}, "text": {"hi"}}
		req := httptest.NewRequest("POST", "/api/proxy", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		env, err := gateway.ParseEnvelope(req)
		require.NoError(t, err)

		fe, ok := env.(*gateway.FormEnvelope)
		require.True(t, ok)
		assert.Equal(t, "/api/notes", fe.Target())
		assert.Equal(t, []string{"hi"}, fe.Fields["text"])
	})
}

func TestFormEnvelopeMaterialize(t *testing.T) {
	t.Parallel()

	t.Run("rebuilds a multipart body without descriptor fields", func(t *testing.T) {
		t.Parallel()

		req := multipartEnvelopeRequest(t, map[string]string{"proxy_url": "/api/upload"})
		env, err := gateway.ParseEnvelope(req)
		require.NoError(t, err)

		path, body, contentType, err := env.Materialize()
		require.NoError(t, err)
		assert.Equal(t, "/api/upload", path)
		require.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))

		boundary := strings.TrimPrefix(contentType, "multipart/form-data; boundary=")
		mr := multipart.NewReader(bytes.NewReader(body), boundary)
		form, err := mr.ReadForm(1 << 20)
		require.NoError(t, err)
		t.Cleanup(func() { form.RemoveAll() })

		assert.Equal(t, []string{"hello"}, form.Value["note"])
		assert.NotContains(t, form.Value, "proxy_url")
		require.Len(t, form.File["attachment"], 1)
		assert.Equal(t, "report.csv", form.File["attachment"][0].Filename)

		file, err := form.File["attachment"][0].Open()
		require.NoError(t, err)
		defer file.Close()
		content := make([]byte, 64)
		n, _ := file.Read(content)
		assert.Equal(t, "a,b\n1,2\n", string(content[:n]))
	})

	t.Run("get folds fields into query parameters", func(t *testing.T) {
		t.Parallel()

		form := url.Values{"proxy_url": {"/api/search"}, "proxy_method": {"GET"}, "q": {"beans"}}
		req := httptest.NewRequest("POST", "/api/proxy", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		env, err := gateway.ParseEnvelope(req)
		require.NoError(t, err)

		path, body, contentType, err := env.Materialize()
		require.NoError(t, err)
		assert.Empty(t, body)
		assert.Empty(t, contentType)
		assert.Equal(t, "/api/search?q=beans", path)
	})
}
