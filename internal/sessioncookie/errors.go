package sessioncookie

import (
	"errors"
	"fmt"
)

// ErrNoSession indicates the request carries no usable session cookie.
// Callers treat it as "unauthenticated", never as a failure.
var ErrNoSession = errors.New("no session cookie in request")

// ErrCookieTooLarge indicates the serialized cookie exceeds the maximum
// allowed size and was not written.
type ErrCookieTooLarge struct {
	Name string
	Size int
	Max  int
}

// Error implements the error interface.
func (e ErrCookieTooLarge) Error() string {
	return fmt.Sprintf("cookie %q size %d exceeds maximum %d bytes", e.Name, e.Size, e.Max)
}
