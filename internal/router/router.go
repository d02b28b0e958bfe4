// Package router exposes a small routing facade over chi that works with
// the handler combinator types used across the application: handlers
// return a Response, errors flow into a single configurable error handler,
// and panics never crash the server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/authgate/internal/handler"
)

// Router dispatches requests to registered handlers.
type Router struct {
	mux          chi.Router
	middlewares  []handler.Middleware
	errorHandler handler.ErrorHandler
	routed       bool
}

// New creates a router with the given options.
func New(opts ...Option) *Router {
	rt := &Router{
		mux:          chi.NewRouter(),
		errorHandler: defaultErrorHandler,
	}

	for _, opt := range opts {
		opt(rt)
	}

	rt.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler(handler.NewContext(w, r), ErrNotFound)
	})
	rt.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errorHandler(handler.NewContext(w, r), ErrMethodNotAllowed)
	})

	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ww := &responseWriter{ResponseWriter: w}

	defer func() {
		if rec := recover(); rec != nil {
			if !ww.Written() {
				rt.errorHandler(handler.NewContext(ww, r), toError(rec))
			}
		}
	}()

	rt.mux.ServeHTTP(ww, r)
}

// Get registers a handler for GET requests.
func (rt *Router) Get(pattern string, fn handler.HandlerFunc) {
	rt.mux.Get(pattern, rt.wrap(fn))
	rt.routed = true
}

// Post registers a handler for POST requests.
func (rt *Router) Post(pattern string, fn handler.HandlerFunc) {
	rt.mux.Post(pattern, rt.wrap(fn))
	rt.routed = true
}

// Put registers a handler for PUT requests.
func (rt *Router) Put(pattern string, fn handler.HandlerFunc) {
	rt.mux.Put(pattern, rt.wrap(fn))
	rt.routed = true
}

// Delete registers a handler for DELETE requests.
func (rt *Router) Delete(pattern string, fn handler.HandlerFunc) {
	rt.mux.Delete(pattern, rt.wrap(fn))
	rt.routed = true
}

// Patch registers a handler for PATCH requests.
func (rt *Router) Patch(pattern string, fn handler.HandlerFunc) {
	rt.mux.Patch(pattern, rt.wrap(fn))
	rt.routed = true
}

// Head registers a handler for HEAD requests.
func (rt *Router) Head(pattern string, fn handler.HandlerFunc) {
	rt.mux.Head(pattern, rt.wrap(fn))
	rt.routed = true
}

// Options registers a handler for OPTIONS requests.
func (rt *Router) Options(pattern string, fn handler.HandlerFunc) {
	rt.mux.Options(pattern, rt.wrap(fn))
	rt.routed = true
}

// Handle registers a handler for all HTTP methods.
func (rt *Router) Handle(pattern string, fn handler.HandlerFunc) {
	rt.mux.Handle(pattern, rt.wrap(fn))
	rt.routed = true
}

// Use appends middleware to the router. It panics when called after a route
// has been registered because middleware is baked into handlers at
// registration time.
func (rt *Router) Use(middlewares ...handler.Middleware) {
	if rt.routed {
		panic("router: all middlewares must be defined before routes")
	}
	rt.middlewares = append(rt.middlewares, middlewares...)
}

// With returns a derived router sharing the same routing tree with
// additional middleware appended to a copy of the current stack.
func (rt *Router) With(middlewares ...handler.Middleware) *Router {
	mws := make([]handler.Middleware, len(rt.middlewares))
	copy(mws, rt.middlewares)
	mws = append(mws, middlewares...)

	return &Router{
		mux:          rt.mux,
		middlewares:  mws,
		errorHandler: rt.errorHandler,
	}
}

// Group creates an inline router for grouping routes under a shared
// middleware stack.
func (rt *Router) Group(fn func(gr *Router)) *Router {
	gr := rt.With()
	if fn != nil {
		fn(gr)
	}
	return gr
}

// wrap bakes the middleware stack into the endpoint and translates the
// combinator types to a plain http.HandlerFunc for the chi tree.
func (rt *Router) wrap(fn handler.HandlerFunc) http.HandlerFunc {
	endpoint := handler.Chain(rt.middlewares, fn)

	return func(w http.ResponseWriter, r *http.Request) {
		ww, ok := w.(*responseWriter)
		if !ok {
			ww = &responseWriter{ResponseWriter: w}
		}
		ctx := handler.NewContext(ww, r)

		resp := endpoint(ctx)
		if resp == nil {
			rt.errorHandler(ctx, ErrNilResponse)
			return
		}

		if err := resp(ww, ctx.Request()); err != nil {
			if !ww.Written() {
				rt.errorHandler(ctx, err)
			}
		}
	}
}
