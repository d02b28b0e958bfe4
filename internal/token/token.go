package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken indicates the token is not three dot-separated segments
// or its payload is not base64url-encoded JSON.
var ErrMalformedToken = errors.New("malformed token")

// Claims is the decoded, unverified token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// User identifies the subject a token was issued for.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verification is the outcome of local token inspection.
type Verification struct {
	Valid   bool  `json:"isValid"`
	Expired bool  `json:"isExpired"`
	User    *User `json:"user,omitempty"`
}

// Codec decodes token payloads and evaluates expiry against an injectable clock.
type Codec struct {
	parser *jwt.Parser
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a codec with the given options.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{
		parser: jwt.NewParser(jwt.WithPaddingAllowed()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode extracts the claims from a token's payload segment. Only the
// middle segment is inspected; the header and signature are ignored and
// the signature is never verified.
func (c *Codec) Decode(raw string) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	payload, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// IsValid reports whether the token decodes and its expiry lies strictly
// in the future. Any failure, including a missing exp claim, counts as
// invalid.
func (c *Codec) IsValid(raw string) bool {
	claims, err := c.Decode(raw)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.After(c.now())
}

// IsExpired reports whether the token should be treated as expired. Decode
// failures and missing expiry count as expired.
func (c *Codec) IsExpired(raw string) bool {
	return !c.IsValid(raw)
}

// RemainingSeconds returns how many whole seconds remain until the token
// expires, or 0 when it is already expired or cannot be decoded.
func (c *Codec) RemainingSeconds(raw string) int64 {
	claims, err := c.Decode(raw)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Unix() - c.now().Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExtractUser maps the sub, email and name claims to a User. Returns nil
// when the token cannot be decoded.
func (c *Codec) ExtractUser(raw string) *User {
	claims, err := c.Decode(raw)
	if err != nil {
		return nil
	}
	return &User{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}
}

// VerifyLocally combines decoding, expiry evaluation and user extraction.
// On any failure it returns the safe default: invalid and expired, no user.
func (c *Codec) VerifyLocally(raw string) Verification {
	claims, err := c.Decode(raw)
	if err != nil {
		return Verification{Valid: false, Expired: true}
	}

	valid := claims.ExpiresAt != nil && claims.ExpiresAt.After(c.now())
	return Verification{
		Valid:   valid,
		Expired: !valid,
		User: &User{
			ID:    claims.Subject,
			Email: claims.Email,
			Name:  claims.Name,
		},
	}
}
