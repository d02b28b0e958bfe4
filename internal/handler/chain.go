package handler

// Chain builds a single handler from a middleware stack and endpoint.
// Middleware wraps in reverse order so the first middleware runs first.
func Chain(middlewares []Middleware, endpoint HandlerFunc) HandlerFunc {
	h := endpoint
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
