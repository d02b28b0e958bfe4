// Package handler defines the request handling contracts shared by the
// router, middleware, and response packages.
package handler

import "net/http"

// Response is a function that renders HTTP responses.
// It sets headers, status code, and writes the response body.
// Rendering errors are handled by the router's error handler.
type Response func(w http.ResponseWriter, r *http.Request) error

// HandlerFunc processes a request and returns the response to render.
type HandlerFunc func(ctx *Context) Response

// ErrorHandler handles errors during request processing.
type ErrorHandler func(ctx *Context, err error)

// Middleware wraps handlers to add cross-cutting functionality.
type Middleware func(next HandlerFunc) HandlerFunc
