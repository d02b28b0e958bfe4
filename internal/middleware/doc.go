// Package middleware provides request middleware built on the handler
// combinator types: request ID tracing, structured request logging,
// request language resolution, body size limits, security response
// headers, and rate limiting.
//
// Each middleware comes in two flavors: a zero-config constructor with
// sensible defaults and a WithConfig variant for fine-grained control.
// Config structs expose a Skip function to bypass the middleware for
// specific requests.
package middleware
