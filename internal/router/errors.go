package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/handler"
)

// routeError is a routing failure that knows its HTTP status, so any
// error handler can map it without special-casing the router.
type routeError struct {
	msg    string
	status int
}

func (e *routeError) Error() string   { return e.msg }
func (e *routeError) StatusCode() int { return e.status }

// Standard routing errors passed to the error handler.
var (
	ErrNotFound         error = &routeError{msg: "route not found", status: http.StatusNotFound}
	ErrMethodNotAllowed error = &routeError{msg: "method not allowed", status: http.StatusMethodNotAllowed}
	ErrNilResponse      error = &routeError{msg: "handler returned nil response", status: http.StatusInternalServerError}
)

// defaultErrorHandler writes plain-text responses for routers created
// without a custom error handler.
func defaultErrorHandler(ctx *handler.Context, err error) {
	w := ctx.ResponseWriter()
	if ww, ok := w.(*responseWriter); ok && ww.Written() {
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "404 Not Found", http.StatusNotFound)
	case errors.Is(err, ErrMethodNotAllowed):
		http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
	}
}

// toError converts a recovered panic value to an error.
func toError(v any) error {
	switch e := v.(type) {
	case error:
		return e
	case string:
		return errors.New(e)
	default:
		return fmt.Errorf("panic: %v", e)
	}
}
