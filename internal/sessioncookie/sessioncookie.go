// Package sessioncookie manages the single httpOnly cookie that carries the
// bearer token between the browser and the gateway. Cookie attributes are
// fixed: HttpOnly, Path=/, SameSite=Strict, with Secure added in production
// deployments. Read failures degrade to "no session" instead of surfacing
// to page rendering.
package sessioncookie

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/authgate/internal/logger"
)

const (
	// DefaultCookieName is the session cookie name unless configured otherwise.
	DefaultCookieName = "auth-token"
	// MaxCookieSize is the maximum serialized size for the cookie (4KB).
	MaxCookieSize = 4096
)

// Manager reads, writes and clears the session cookie.
type Manager struct {
	name    string
	secure  bool
	maxSize int
	log     *slog.Logger
}

// New creates a session cookie manager with the given options.
func New(opts ...Option) *Manager {
	m := &Manager{
		name:    DefaultCookieName,
		maxSize: MaxCookieSize,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the configured cookie name.
func (m *Manager) Name() string {
	return m.name
}

// Read returns the bearer token held by the session cookie. A missing
// cookie or an empty value yields ErrNoSession.
func (m *Manager) Read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrNoSession
		}
		m.log.Warn("session cookie read failed", logger.Error(err))
		return "", ErrNoSession
	}
	if cookie.Value == "" {
		return "", ErrNoSession
	}
	return cookie.Value, nil
}

// Write sets the session cookie to the given token. Without WithMaxAge the
// cookie is scoped to the browser session.
func (m *Manager) Write(w http.ResponseWriter, token string, opts ...WriteOption) error {
	options := applyWriteOptions(writeOptions{}, opts)

	cookie := &http.Cookie{
		Name:     m.name,
		Value:    token,
		Path:     "/",
		MaxAge:   options.maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   m.secure,
	}

	if header := cookie.String(); len(header) > m.maxSize {
		return ErrCookieTooLarge{Name: m.name, Size: len(header), Max: m.maxSize}
	}

	http.SetCookie(w, cookie)
	return nil
}

// Clear overwrites the session cookie with an empty value and Max-Age=0,
// expiring it immediately regardless of prior state.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   m.secure,
	})
}

// ExtractBearer pulls a bearer token out of an Authorization header. The
// header entry is removed unconditionally, whatever its scheme, so it can
// never be copied through to the browser.
func (m *Manager) ExtractBearer(header http.Header) (string, bool) {
	raw := header.Get("Authorization")
	if raw == "" {
		return "", false
	}
	header.Del("Authorization")

	token, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// ExtractAndStore moves a bearer token from an upstream Authorization
// header into the session cookie. Returns the stored token and whether one
// was found.
func (m *Manager) ExtractAndStore(w http.ResponseWriter, header http.Header, opts ...WriteOption) (string, bool) {
	token, ok := m.ExtractBearer(header)
	if !ok {
		return "", false
	}

	if err := m.Write(w, token, opts...); err != nil {
		m.log.Error("failed to store session token", logger.Error(err))
		return "", false
	}
	return token, true
}
