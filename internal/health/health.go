// Package health provides liveness and readiness endpoints for the
// gateway process.
package health

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/authgate/internal/handler"
	"github.com/dmitrymomot/authgate/internal/logger"
	"github.com/dmitrymomot/authgate/internal/response"
)

// Liveness indicates the process is running. Always answers "ALIVE" with
// 200 OK, no dependency checks.
func Liveness(*handler.Context) handler.Response {
	return response.String("ALIVE")
}

// NoContent answers 204 without a body, for high-frequency probes.
func NoContent(*handler.Context) handler.Response {
	return response.NoContent()
}

// Readiness verifies the gateway's dependencies. Answers "READY" when all
// checks pass and 503 Service Unavailable when any fails.
//
// Example:
//
//	rt.Get("/health/ready", health.Readiness(log, backend.Healthcheck))
func Readiness(log *slog.Logger, fn ...func(context.Context) error) handler.HandlerFunc {
	return func(ctx *handler.Context) handler.Response {
		for _, f := range fn {
			if err := f(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
				return response.Error(response.ErrServiceUnavailable)
			}
		}
		return response.String("READY")
	}
}
