package response

import (
	"net/http"

	"github.com/dmitrymomot/authgate/internal/handler"
)

// Error returns a handler response that propagates the given error.
// The error is converted and rendered by the router's error handler,
// which keeps status mapping and logging in one place.
func Error(err error) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		return err
	}
}
