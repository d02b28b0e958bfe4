package auth

import (
	"github.com/dmitrymomot/authgate/internal/sessioncookie"
	"github.com/dmitrymomot/authgate/internal/token"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

// Config contains session service settings loaded from the environment.
type Config struct {
	// RemoteVerify routes token verification through the backend's verify
	// endpoint instead of the local payload check.
	RemoteVerify bool `env:"AUTH_REMOTE_VERIFY" envDefault:"false"`
}

// NewFromConfig creates a session service from environment configuration.
// Explicit options take precedence over config values.
func NewFromConfig(cfg Config, client *upstream.Client, cookies *sessioncookie.Manager, codec *token.Codec, opts ...Option) *Service {
	var configOpts []Option
	if cfg.RemoteVerify {
		configOpts = append(configOpts, WithRemoteVerification())
	}
	return New(client, cookies, codec, append(configOpts, opts...)...)
}
