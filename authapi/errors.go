package authapi

import "errors"

// Typed failures returned across the client boundary. Callers branch on
// these with errors.Is; the client never panics or returns untyped HTTP
// errors for expected backend outcomes.
var (
	// ErrInvalidCredentials is returned by Login when the backend rejects
	// the username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWrongOldPassword is returned by ChangePassword when the supplied
	// old password does not match.
	ErrWrongOldPassword = errors.New("wrong old password")

	// ErrWeakPassword is returned when the backend rejects a new password
	// against its own policy.
	ErrWeakPassword = errors.New("weak password")

	// ErrInvalidOrExpiredCode is returned by ResetPassword when the
	// recovery code is wrong, already used, or expired.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired recovery code")

	// ErrTokenRejected is returned when an authenticated call is refused
	// because the session token is no longer valid. The caller must force
	// an immediate logout rather than leave a half-valid session.
	ErrTokenRejected = errors.New("session token rejected")

	// ErrNetwork covers timeouts, an unreachable backend and backend-side
	// failures. The caller may resubmit manually; the client never retries.
	ErrNetwork = errors.New("network failure")
)
