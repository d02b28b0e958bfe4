package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/authgate/internal/binder"
	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/locale"
	"github.com/dmitrymomot/authgate/internal/logger"
	"github.com/dmitrymomot/authgate/internal/response"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

// Proxy returns the handler for proxied API calls. The browser describes
// the backend call it wants; the gateway authorizes it from the session
// cookie, forwards it, and rewrites the answer.
func (g *Gateway) Proxy() handler.HandlerFunc {
	return func(ctx *handler.Context) handler.Response {
		env, err := ParseEnvelope(ctx.Request())
		if err != nil {
			return envelopeError(err)
		}
		return g.forward(ctx, env)
	}
}

// envelopeError maps parse failures to the wire format proxy clients
// expect. No upstream call has happened at this point.
func envelopeError(err error) handler.Response {
	msg := "Invalid request body"
	switch {
	case errors.Is(err, ErrMissingURL):
		msg = "URL is required"
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		msg = "Unsupported content type"
	}
	return response.JSONWithStatus(map[string]string{"error": msg}, http.StatusBadRequest)
}

// proxyFailure is the generic answer for internal proxy errors. Details
// stay in the server log.
func proxyFailure() handler.Response {
	return response.JSONWithStatus(map[string]string{"error": "Internal server error"}, http.StatusInternalServerError)
}

func (g *Gateway) forward(ctx *handler.Context, env Envelope) handler.Response {
	r := ctx.Request()

	path, body, contentType, err := env.Materialize()
	if err != nil {
		if errors.Is(err, ErrInvalidEnvelope) {
			return envelopeError(err)
		}
		g.log.ErrorContext(r.Context(), "failed to build proxied request",
			logger.Event("proxy"),
			logger.Error(err),
		)
		return proxyFailure()
	}

	header := http.Header{}
	tok, readErr := g.sessions.Token(r)
	if readErr == nil {
		header.Set("Authorization", "Bearer "+tok)
	}
	if lang := g.language(env, r); lang != "" {
		header.Set("X-Language", lang)
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	resp, err := g.do(r.Context(), env.Method(), path, header, body)
	if err != nil {
		g.log.ErrorContext(r.Context(), "proxied request failed",
			logger.Event("proxy"),
			logger.Error(err),
		)
		return proxyFailure()
	}

	var refreshed *upstream.Session
	if resp.StatusCode == http.StatusUnauthorized && readErr == nil {
		refreshed, resp, err = g.retryWithRefresh(r.Context(), resp, env.Method(), path, header, body)
		if err != nil {
			g.log.ErrorContext(r.Context(), "proxied retry failed",
				logger.Event("proxy"),
				logger.Error(err),
			)
			return proxyFailure()
		}
	}

	return g.relay(resp, refreshed)
}

// language picks the response language: an explicit envelope value wins,
// otherwise the first tag of the browser's Accept-Language header.
func (g *Gateway) language(env Envelope, r *http.Request) string {
	if lang := env.Language(); lang != "" {
		return lang
	}
	return locale.FirstTag(r.Header.Get("Accept-Language"))
}

func (g *Gateway) do(ctx context.Context, method, path string, header http.Header, body []byte) (*http.Response, error) {
	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	return g.client.Do(ctx, method, path, header, rd)
}

// retryWithRefresh makes the single allowed recovery attempt for an
// unauthorized answer: one refresh call with the same headers, then one
// retry with the fresh token. A failed refresh propagates the original
// 401 untouched; the target is never called a third time.
func (g *Gateway) retryWithRefresh(ctx context.Context, first *http.Response, method, path string, header http.Header, body []byte) (*upstream.Session, *http.Response, error) {
	sess, err := g.client.Refresh(ctx, header)
	if err != nil {
		return nil, first, nil
	}

	first.Body.Close()
	header.Set("Authorization", "Bearer "+sess.Token)

	resp, err := g.do(ctx, method, path, header, body)
	if err != nil {
		return nil, nil, err
	}
	return sess, resp, nil
}

// relay writes the upstream answer back to the browser, translating
// session state on the way: a backend-issued bearer token moves into the
// session cookie and never reaches the browser, backend cookies are
// rebound to this host, JSON bodies are re-emitted, and everything else
// streams through.
func (g *Gateway) relay(resp *http.Response, refreshed *upstream.Session) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		defer resp.Body.Close()

		// Token capture comes first so the Authorization header is gone
		// before any header copying can leak it.
		if _, stored := g.sessions.StoreFromHeader(w, resp.Header); !stored && refreshed != nil {
			if err := g.sessions.StoreSession(w, refreshed); err != nil {
				g.log.Error("failed to store refreshed session", logger.Error(err))
			}
		}

		for _, c := range resp.Cookies() {
			http.SetCookie(w, g.rewriteCookie(c))
		}

		if isJSONResponse(resp.Header.Get("Content-Type")) {
			return relayJSON(w, resp)
		}

		copyHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			return fmt.Errorf("relay upstream body: %w", err)
		}
		return nil
	}
}

// relayJSON re-emits a JSON body whole. An upstream answer that claims
// JSON but does not parse fails the relay instead of leaking through.
func relayJSON(w http.ResponseWriter, resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upstream json: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode upstream json: %w", err)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode upstream json: %w", err)
	}

	copyHeaders(w.Header(), resp.Header)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(resp.StatusCode)
	_, err = w.Write(out)
	return err
}

// rewriteCookie rebinds a backend cookie to the gateway's host: the
// backend's domain is dropped, the path widened to the whole site, and
// the Secure attribute kept only where HTTPS is guaranteed.
func (g *Gateway) rewriteCookie(c *http.Cookie) *http.Cookie {
	out := *c
	out.Domain = ""
	out.Path = "/"
	if !g.secure {
		out.Secure = false
	}
	return &out
}

// Hop-by-hop and connection-level headers must not be replayed verbatim.
// Set-Cookie is rewritten separately and Content-Length is recomputed.
var skipHeaders = map[string]struct{}{
	"Set-Cookie":          {},
	"Content-Length":      {},
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, skip := skipHeaders[key]; skip {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isJSONResponse(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}
