package auth

import "errors"

// Error variables define the session failure modes the guards report.
var (
	// ErrInvalidSession indicates the session token failed verification
	// and could not be refreshed.
	ErrInvalidSession = errors.New("invalid session")

	// ErrAlreadyAuthenticated indicates a guest-only request arrived with
	// a valid session.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
)
