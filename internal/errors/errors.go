package errors

import "errors"

// Common error types shared across the callback packages
var (
	// Session errors
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrNoUser         = errors.New("session has no user")

	// Callback errors
	ErrNoParameters = errors.New("callback carried no token or code")
	ErrLinkRejected = errors.New("callback link rejected by auth server")
	ErrTimeout      = errors.New("operation timed out")

	// Launcher errors
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrCancelled           = errors.New("authentication cancelled")

	// Storage errors
	ErrNotFound      = errors.New("not found")
	ErrValueTooLarge = errors.New("value too large")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
