package roles

import "errors"

// Typed, client-correctable failures. Anything else returned by this package
// is an opaque internal failure.
var (
	// ErrUserNotFound means the subject user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrActorNotFound means the user performing the change does not exist.
	ErrActorNotFound = errors.New("acting user not found")

	// ErrInvalidRole means the requested role is not a canonical role name.
	ErrInvalidRole = errors.New("invalid role")
)
