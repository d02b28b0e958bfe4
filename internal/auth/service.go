// Package auth implements the session lifecycle on top of the backend auth
// API: sign-in, sign-out, silent refresh, route guards, and the storage
// policy that ties the session cookie's lifetime to the token's expiry.
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/logger"
	"github.com/dmitrymomot/authgate/internal/sessioncookie"
	"github.com/dmitrymomot/authgate/internal/token"
	"github.com/dmitrymomot/authgate/internal/upstream"
)

// Service coordinates the token codec, the session cookie, and the backend
// auth endpoints behind one session API.
type Service struct {
	client  *upstream.Client
	cookies *sessioncookie.Manager
	codec   *token.Codec
	remote  bool
	log     *slog.Logger
}

// New creates a session service. All three collaborators are required.
func New(client *upstream.Client, cookies *sessioncookie.Manager, codec *token.Codec, opts ...Option) *Service {
	if client == nil {
		panic("auth: upstream client is required")
	}
	if cookies == nil {
		panic("auth: cookie manager is required")
	}
	if codec == nil {
		panic("auth: token codec is required")
	}

	s := &Service{
		client:  client,
		cookies: cookies,
		codec:   codec,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the session token carried by the request's cookie.
func (s *Service) Token(r *http.Request) (string, error) {
	return s.cookies.Read(r)
}

// StoreToken writes the token to the session cookie. The cookie's Max-Age
// follows the token's own expiry; advertisedTTL is the backend's
// expires_in fallback, in seconds, for tokens whose payload carries no
// usable exp claim. With neither, the cookie is session-scoped.
func (s *Service) StoreToken(w http.ResponseWriter, tok string, advertisedTTL int64) error {
	var opts []sessioncookie.WriteOption
	if secs := s.codec.RemainingSeconds(tok); secs > 0 {
		opts = append(opts, sessioncookie.WithMaxAge(int(secs)))
	} else if advertisedTTL > 0 {
		opts = append(opts, sessioncookie.WithMaxAge(int(advertisedTTL)))
	}
	return s.cookies.Write(w, tok, opts...)
}

// StoreSession stores a backend-issued session under the standard
// lifetime policy.
func (s *Service) StoreSession(w http.ResponseWriter, sess *upstream.Session) error {
	return s.StoreToken(w, sess.Token, sess.ExpiresIn)
}

// StoreFromHeader moves a bearer token out of the given header set into
// the session cookie. The Authorization entry is deleted either way, so a
// backend-issued token can never leak through to the browser. Returns the
// stored token and whether one was stored.
func (s *Service) StoreFromHeader(w http.ResponseWriter, header http.Header) (string, bool) {
	tok, ok := s.cookies.ExtractBearer(header)
	if !ok {
		return "", false
	}
	if err := s.StoreToken(w, tok, 0); err != nil {
		s.log.Error("failed to store session token", logger.Error(err))
		return "", false
	}
	return tok, true
}

// Clear drops the session cookie.
func (s *Service) Clear(w http.ResponseWriter) {
	s.cookies.Clear(w)
}

// Verify validates a token using the configured mode. Local verification
// inspects only the token payload. Remote verification asks the backend
// and falls back to the local check when the backend cannot answer.
func (s *Service) Verify(ctx context.Context, tok string) token.Verification {
	if !s.remote {
		return s.codec.VerifyLocally(tok)
	}

	rv, err := s.client.Verify(ctx, tok)
	if err != nil {
		s.log.WarnContext(ctx, "remote token verification unavailable", logger.Error(err))
		return s.codec.VerifyLocally(tok)
	}
	return token.Verification{Valid: rv.Valid, Expired: rv.Expired, User: s.codec.ExtractUser(tok)}
}

// User returns the profile embedded in the request's session token.
// Fails with sessioncookie.ErrNoSession when there is no cookie and
// ErrInvalidSession when the token does not pass local verification.
func (s *Service) User(r *http.Request) (*token.User, error) {
	tok, err := s.Token(r)
	if err != nil {
		return nil, err
	}

	v := s.codec.VerifyLocally(tok)
	if !v.Valid {
		return nil, ErrInvalidSession
	}
	return v.User, nil
}
