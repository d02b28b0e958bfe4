// Package gateway proxies browser API calls to the backend. It translates
// between the two auth worlds on every round trip: the browser's httpOnly
// session cookie on the way in becomes a bearer token, and any token the
// backend issues on the way out is captured into the cookie before the
// response reaches the browser.
package gateway

import (
	"log/slog"

	"github.com/dmitrymomot/authgate/internal/auth"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

// Gateway forwards proxied calls and rewrites their responses.
type Gateway struct {
	client   *upstream.Client
	sessions *auth.Service
	secure   bool
	log      *slog.Logger
}

// New creates a gateway. Both collaborators are required.
func New(client *upstream.Client, sessions *auth.Service, opts ...Option) *Gateway {
	if client == nil {
		panic("gateway: upstream client is required")
	}
	if sessions == nil {
		panic("gateway: session service is required")
	}

	g := &Gateway{
		client:   client,
		sessions: sessions,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets the logger for proxy diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithSecureCookies keeps the Secure attribute on rewritten backend
// cookies. Leave it off outside production so plain-HTTP setups work.
func WithSecureCookies() Option {
	return func(g *Gateway) {
		g.secure = true
	}
}
