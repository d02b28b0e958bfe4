package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/ratelimit"
	"github.com/dmitrymomot/authgate/internal/response"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx *handler.Context) bool
	// Limiter is the rate limiting implementation to use (required)
	Limiter *ratelimit.Limiter
	// KeyExtractor derives the rate limiting key from a request
	// (default: client IP)
	KeyExtractor func(ctx *handler.Context) string
	// ErrorHandler handles rejected requests (default: 429 Too Many Requests)
	ErrorHandler func(ctx *handler.Context, res ratelimit.Result) handler.Response
}

// RateLimit creates a rate limiting middleware keyed by client IP.
// Panics if no limiter is provided.
func RateLimit(limiter *ratelimit.Limiter) handler.Middleware {
	return RateLimitWithConfig(RateLimitConfig{Limiter: limiter})
}

// RateLimitWithConfig creates a rate limiting middleware with custom
// configuration. Rejected requests get a Retry-After header.
func RateLimitWithConfig(cfg RateLimitConfig) handler.Middleware {
	if cfg.Limiter == nil {
		panic("rate limit middleware: limiter is required")
	}
	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = func(ctx *handler.Context) string {
			return ClientIP(ctx.Request())
		}
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx *handler.Context, res ratelimit.Result) handler.Response {
			return func(w http.ResponseWriter, r *http.Request) error {
				if secs := int(res.RetryAfter.Seconds()); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				return response.Error(response.ErrTooManyRequests)(w, r)
			}
		}
	}

	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx *handler.Context) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			if res := cfg.Limiter.Allow(cfg.KeyExtractor(ctx)); !res.Allowed {
				return cfg.ErrorHandler(ctx, res)
			}
			return next(ctx)
		}
	}
}

// ClientIP extracts the originating client address, trusting the usual
// proxy headers before falling back to the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
