// Package token decodes bearer token payloads and evaluates their expiry
// without verifying the cryptographic signature. Signature verification is
// delegated to the upstream identity backend; this package only answers
// "what does the token claim, and is it still within its lifetime".
//
// All checks fail toward the safe side: a token that cannot be decoded is
// never valid and always expired.
//
// Usage:
//
//	codec := token.NewCodec()
//
//	if codec.IsValid(raw) {
//		user := codec.ExtractUser(raw)
//		// serve the authenticated user
//	}
//
//	// or get the full picture at once
//	v := codec.VerifyLocally(raw)
//	if v.Expired {
//		// trigger a refresh
//	}
//
// The clock is injectable for deterministic expiry tests:
//
//	codec := token.NewCodec(token.WithClock(func() time.Time {
//		return time.Unix(1700000000, 0)
//	}))
package token
