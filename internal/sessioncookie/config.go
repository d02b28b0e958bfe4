package sessioncookie

// Config provides environment-based configuration for the session cookie.
type Config struct {
	Name    string `env:"SESSION_COOKIE_NAME" envDefault:"auth-token"`
	MaxSize int    `env:"SESSION_COOKIE_MAX_SIZE" envDefault:"4096"`
}

// NewFromConfig creates a Manager from configuration. User-provided options
// are applied after config values and take precedence.
func NewFromConfig(cfg Config, opts ...Option) *Manager {
	configOpts := make([]Option, 0, 2+len(opts))

	if cfg.Name != "" {
		configOpts = append(configOpts, WithName(cfg.Name))
	}
	if cfg.MaxSize > 0 {
		configOpts = append(configOpts, WithMaxSize(cfg.MaxSize))
	}
	configOpts = append(configOpts, opts...)

	return New(configOpts...)
}
