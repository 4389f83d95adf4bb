package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialMissing means no decodable credential pair exists for the
	// tenant; the caller must log in again with explicit credentials.
	ErrCredentialMissing = errors.New("credentials not found, please login again")

	// ErrSessionNotAuthorized means the provider reports the persisted session
	// as unauthorized; the login handshake must be driven first.
	ErrSessionNotAuthorized = errors.New("session not authorized, please login via web UI")

	// ErrSessionExpired means no pending login handshake exists for the tenant.
	ErrSessionExpired = errors.New("login session expired, please request a new code")

	// ErrSecondFactorRequired is a flow branch, not a failure: the provider
	// wants the account password after the code.
	ErrSecondFactorRequired = errors.New("two-step verification password required")

	ErrIncorrectPassword = errors.New("incorrect password, please try again")
)

// RateLimitError reports a provider flood/rate-limit condition. Callers must
// back off instead of retrying immediately.
type RateLimitError struct {
	Detail string
}

func (e *RateLimitError) Error() string {
	return "provider rate limit: " + e.Detail
}

// IsRateLimit reports whether err carries a RateLimitError anywhere in its chain.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// ConnectionError wraps a failed connect attempt to the provider.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection failure: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError wraps a failed delivery to a single target.
type SendError struct {
	Target string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.Target, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
