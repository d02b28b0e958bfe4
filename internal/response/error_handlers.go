package response

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/handler"
)

// statusCode is an interface that errors can implement
// to provide a custom HTTP status code.
type statusCode interface {
	StatusCode() int
}

// ToHTTPError converts any error to an HTTPError.
// Unknown errors map to an opaque 500; the original error text never
// reaches the client and is expected to be logged by the caller.
func ToHTTPError(err error) HTTPError {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	status := http.StatusInternalServerError
	if sc, ok := err.(statusCode); ok {
		status = sc.StatusCode()
	}

	baseErr, ok := httpErrorsByStatus[status]
	if !ok {
		baseErr = ErrInternalServerError
	}

	return baseErr
}

// ErrorHandler is the default error handler that returns plain text errors.
func ErrorHandler(ctx *handler.Context, err error) {
	httpErr := ToHTTPError(err)
	Render(ctx, StringWithStatus(httpErr.Error(), httpErr.Status))
}

// JSONErrorHandler returns errors as JSON responses.
// HTTPError values keep their status and structured body; everything else
// becomes an opaque 500.
func JSONErrorHandler(ctx *handler.Context, err error) {
	httpErr := ToHTTPError(err)
	Render(ctx, JSONWithStatus(httpErr, httpErr.Status))
}
