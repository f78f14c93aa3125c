package spotify

import (
	"errors"
	"fmt"
)

// Error kinds reported to relay callers
const (
	KindUpstreamAuth = "upstream_auth"
	KindInternal     = "internal"
)

// ErrStateMismatch is returned when the OAuth callback state doesn't match.
var ErrStateMismatch = errors.New("OAuth state mismatch")

// UpstreamAuthError means the refresh token could not be exchanged for an
// access token. It never carries credential material.
type UpstreamAuthError struct {
	StatusCode int // upstream HTTP status, 0 when the request never completed
	Err        error
}

func (e *UpstreamAuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *UpstreamAuthError) Unwrap() error {
	return e.Err
}

// UpstreamDataError means the now-playing lookup failed after a token was
// obtained. The relay folds it into a "nothing playing" snapshot.
type UpstreamDataError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamDataError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("now playing lookup failed with status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("now playing lookup failed with status %d", e.StatusCode)
	default:
		return fmt.Sprintf("now playing lookup failed: %v", e.Err)
	}
}

func (e *UpstreamDataError) Unwrap() error {
	return e.Err
}

// ErrorKind maps an error to the machine-readable kind sent to callers.
func ErrorKind(err error) string {
	var authErr *UpstreamAuthError
	if errors.As(err, &authErr) {
		return KindUpstreamAuth
	}
	return KindInternal
}
