package middleware

import (
	"errors"
	"fmt"
	"io"
	"mime"

	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/response"
)

// BodyLimitConfig configures the request body limit middleware.
type BodyLimitConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx *handler.Context) bool

	// MaxSize is the maximum allowed size in bytes (default: 4MB)
	MaxSize int64

	// ContentTypeLimit sets different limits per media type,
	// e.g. {"application/json": 1 << 20, "multipart/form-data": 16 << 20}
	ContentTypeLimit map[string]int64

	// ErrorHandler handles requests that exceed the size limit
	ErrorHandler func(ctx *handler.Context, contentLength, maxSize int64) handler.Response
}

// BodyLimit creates a body limit middleware with the default 4MB limit.
func BodyLimit() handler.Middleware {
	return BodyLimitWithConfig(BodyLimitConfig{})
}

// BodyLimitWithSize creates a body limit middleware with a specific limit.
func BodyLimitWithSize(maxSize int64) handler.Middleware {
	return BodyLimitWithConfig(BodyLimitConfig{MaxSize: maxSize})
}

// BodyLimitWithConfig creates a body limit middleware with custom
// configuration. A declared Content-Length over the limit is rejected up
// front; bodies without one are cut off during reading.
func BodyLimitWithConfig(cfg BodyLimitConfig) handler.Middleware {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 4 << 20
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx *handler.Context, contentLength, maxSize int64) handler.Response {
			return response.Error(response.ErrRequestEntityTooLarge.WithMessage(
				fmt.Sprintf("Request body too large. Maximum allowed: %d bytes", maxSize)))
		}
	}

	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx *handler.Context) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			req := ctx.Request()

			maxSize := cfg.MaxSize
			if cfg.ContentTypeLimit != nil {
				if mediaType, _, err := mime.ParseMediaType(req.Header.Get("Content-Type")); err == nil {
					if limit, ok := cfg.ContentTypeLimit[mediaType]; ok {
						maxSize = limit
					}
				}
			}

			if req.ContentLength > maxSize {
				return cfg.ErrorHandler(ctx, req.ContentLength, maxSize)
			}

			if req.Body != nil {
				req.Body = &limitedBody{body: req.Body, remaining: maxSize}
			}

			return next(ctx)
		}
	}
}

// limitedBody cuts off reading once the limit is exceeded. The error it
// returns fails the handler's body parse instead of writing a response
// mid-stream.
type limitedBody struct {
	body      io.ReadCloser
	remaining int64
}

// ErrBodyTooLarge is returned by reads past the configured size limit.
var ErrBodyTooLarge = errors.New("request body exceeds the configured size limit")

func (lb *limitedBody) Read(p []byte) (int, error) {
	if lb.remaining < 0 {
		return 0, ErrBodyTooLarge
	}
	// One byte of slack distinguishes an exact-size body from an
	// oversized one.
	if int64(len(p)) > lb.remaining+1 {
		p = p[:lb.remaining+1]
	}
	n, err := lb.body.Read(p)
	lb.remaining -= int64(n)
	if lb.remaining < 0 {
		return n, ErrBodyTooLarge
	}
	return n, err
}

func (lb *limitedBody) Close() error {
	return lb.body.Close()
}
