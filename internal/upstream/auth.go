package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrymomot/authgate/internal/logger"
)

// Session is a bearer token with the lifetime the backend advertised for it.
// ExpiresIn is zero when the token arrived via the Authorization header,
// which carries no lifetime.
type Session struct {
	Token     string
	ExpiresIn int64
}

// RemoteVerification is the backend's verdict on a token.
type RemoteVerification struct {
	Valid   bool
	Expired bool
}

// Login exchanges credentials for a session token. A 4xx answer yields
// ErrInvalidCredentials joined with ErrLoginRejected carrying the status.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, http.MethodPost, c.cfg.LoginPath, header, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return sessionFromResponse(resp)
	case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
		c.log.DebugContext(ctx, "login rejected",
			logger.Event("login"),
			logger.StatusCode(resp.StatusCode),
		)
		return nil, errors.Join(ErrInvalidCredentials, ErrLoginRejected{Status: resp.StatusCode})
	default:
		return nil, errors.Join(ErrUnexpectedStatus, fmt.Errorf("login returned %d", resp.StatusCode))
	}
}

// Logout notifies the backend that the session ends. Best effort: callers
// clear the session cookie regardless of the outcome.
func (c *Client) Logout(ctx context.Context, token string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	resp, err := c.Do(ctx, http.MethodPost, c.cfg.LogoutPath, header, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxAuthBodySize))

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Join(ErrUnexpectedStatus, fmt.Errorf("logout returned %d", resp.StatusCode))
	}
	return nil
}

// Refresh asks the backend for a fresh token, forwarding the given headers
// unchanged. Any non-200 answer and any 200 without a token count as a
// failed refresh.
func (c *Client) Refresh(ctx context.Context, header http.Header) (*Session, error) {
	resp, err := c.Do(ctx, http.MethodGet, c.cfg.RefreshPath, header, nil)
	if err != nil {
		return nil, errors.Join(ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxAuthBodySize))
		c.log.DebugContext(ctx, "refresh rejected",
			logger.Event("refresh"),
			logger.StatusCode(resp.StatusCode),
		)
		return nil, errors.Join(ErrRefreshFailed, fmt.Errorf("refresh returned %d", resp.StatusCode))
	}

	session, err := sessionFromResponse(resp)
	if err != nil {
		return nil, errors.Join(ErrRefreshFailed, err)
	}
	return session, nil
}

// RefreshToken refreshes a session identified by a bare bearer token.
func (c *Client) RefreshToken(ctx context.Context, token string) (*Session, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return c.Refresh(ctx, header)
}

// Verify posts the token to the verification endpoint for a signature
// check the gateway cannot do locally. 200 means valid; 401 means invalid,
// with the expired flag read heuristically from the error body.
func (c *Client) Verify(ctx context.Context, token string) (RemoteVerification, error) {
	body, err := json.Marshal(struct {
		Token string `json:"token"`
	}{Token: token})
	if err != nil {
		return RemoteVerification{}, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, http.MethodPost, c.cfg.VerifyPath, header, bytes.NewReader(body))
	if err != nil {
		return RemoteVerification{}, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxAuthBodySize))

	switch resp.StatusCode {
	case http.StatusOK:
		return RemoteVerification{Valid: true}, nil
	case http.StatusUnauthorized:
		return RemoteVerification{Valid: false, Expired: hasExpiredFlag(raw)}, nil
	default:
		return RemoteVerification{}, errors.Join(ErrUnexpectedStatus, fmt.Errorf("verify returned %d", resp.StatusCode))
	}
}

// sessionFromResponse extracts the token from an auth response. The
// Authorization header takes priority over a JSON {access_token,
// expires_in} body.
func sessionFromResponse(resp *http.Response) (*Session, error) {
	if raw := resp.Header.Get("Authorization"); raw != "" {
		if token, ok := strings.CutPrefix(raw, "Bearer "); ok && token != "" {
			return &Session{Token: token}, nil
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthBodySize))
	if err != nil {
		return nil, err
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return nil, ErrNoToken
	}
	return &Session{Token: payload.AccessToken, ExpiresIn: payload.ExpiresIn}, nil
}

// hasExpiredFlag checks an auth error body for any indication that the
// token expired rather than being outright invalid.
func hasExpiredFlag(body []byte) bool {
	var payload struct {
		Expired bool   `json:"expired"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.Contains(strings.ToLower(string(body)), "expired")
	}
	return payload.Expired ||
		strings.Contains(strings.ToLower(payload.Error), "expired") ||
		strings.Contains(strings.ToLower(payload.Message), "expired")
}
