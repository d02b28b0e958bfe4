package auth

import "log/slog"

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger for session diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRemoteVerification routes token verification through the backend's
// verify endpoint instead of the local payload check.
func WithRemoteVerification() Option {
	return func(s *Service) {
		s.remote = true
	}
}
