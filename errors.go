package authcore

import "errors"

// Deny-class errors. These are expected negative outcomes: the gateway maps
// them to 4xx responses and they are never worth an operator alert.
var (
	// ErrValidation indicates malformed or missing request input.
	ErrValidation = errors.New("invalid request input")
	// ErrInvalidCredentials covers both "no such user" and "wrong password";
	// the two cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for a disabled account with correct credentials.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountLocked is returned while a lockout flag is active for the username.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited is returned when the per-IP login budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenExpired is returned for a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for a token that fails signature or claim checks.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenRevoked is returned for a refresh token whose session record is gone.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrUserNotFound is returned when a valid token references a principal
	// that no longer exists in the directory.
	ErrUserNotFound = errors.New("user not found")
)

// Fault-class errors. These are unexpected infrastructure failures: the
// request is still denied (fail closed) but callers should alert operators.
var (
	// ErrStoreUnavailable wraps Redis connectivity failures during
	// security-critical checks.
	ErrStoreUnavailable = errors.New("shared store unavailable")
	// ErrDirectoryUnavailable wraps user-directory connectivity failures.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	// ErrEngineNotReady is returned when a required dependency was not wired.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsFault reports whether err is an infrastructure fault rather than an
// expected deny. Faults deserve operator attention; denies do not.
func IsFault(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrDirectoryUnavailable) ||
		errors.Is(err, ErrEngineNotReady)
}
