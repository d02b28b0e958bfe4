package sessioncookie

import "log/slog"

// Option configures the Manager itself.
type Option func(*Manager)

// WithName overrides the cookie name.
func WithName(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.name = name
		}
	}
}

// WithSecure adds the Secure attribute to every cookie written. Enable in
// production so the token only travels over HTTPS.
func WithSecure(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithMaxSize sets the maximum serialized cookie size.
func WithMaxSize(size int) Option {
	return func(m *Manager) {
		if size > 0 {
			m.maxSize = size
		}
	}
}

// WithLogger sets the logger used for read and store failures.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// writeOptions holds per-write settings.
type writeOptions struct {
	maxAge int
}

// WriteOption configures a single Write call.
type WriteOption func(*writeOptions)

// WithMaxAge bounds the cookie lifetime to the given number of seconds.
// Non-positive values are ignored, leaving a session-scoped cookie.
func WithMaxAge(seconds int) WriteOption {
	return func(o *writeOptions) {
		if seconds > 0 {
			o.maxAge = seconds
		}
	}
}

// applyWriteOptions copies base options and applies modifications, keeping
// shared defaults immutable.
func applyWriteOptions(base writeOptions, opts []WriteOption) writeOptions {
	result := base
	for _, opt := range opts {
		opt(&result)
	}
	return result
}
