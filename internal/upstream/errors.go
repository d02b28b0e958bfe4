package upstream

import (
	"errors"
	"fmt"
)

// Error variables define the failure modes of backend communication.
var (
	// ErrInvalidConfig indicates required configuration is missing or malformed.
	ErrInvalidConfig = errors.New("invalid upstream configuration")

	// ErrInvalidCredentials indicates the backend rejected the login credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoToken indicates a successful auth response carried no usable token,
	// neither as an Authorization header nor in the JSON body.
	ErrNoToken = errors.New("no token in upstream response")

	// ErrRefreshFailed indicates the backend declined to issue a fresh token.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrUnexpectedStatus indicates the backend answered with a status the
	// auth flow has no interpretation for.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
)

// ErrLoginRejected carries the 4xx status the backend answered a login
// attempt with, so handlers can relay it. Joined with ErrInvalidCredentials.
type ErrLoginRejected struct {
	Status int
}

// Error implements the error interface.
func (e ErrLoginRejected) Error() string {
	return fmt.Sprintf("login rejected with status %d", e.Status)
}
