package router

import "github.com/dmitrymomot/authgate/internal/handler"

// Option configures a Router during creation.
type Option func(*Router)

// WithErrorHandler sets a custom error handler for the router.
func WithErrorHandler(h handler.ErrorHandler) Option {
	return func(rt *Router) {
		if h != nil {
			rt.errorHandler = h
		}
	}
}

// WithMiddleware adds middleware to the router.
func WithMiddleware(middlewares ...handler.Middleware) Option {
	return func(rt *Router) {
		rt.middlewares = append(rt.middlewares, middlewares...)
	}
}
