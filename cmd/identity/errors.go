package identity

import "shelf/cmd/internal/apperr"

const resourceUser = "User"

// ErrUsernameTaken returns the Conflict reported for a duplicate username.
func ErrUsernameTaken() error {
	return apperr.Conflict(resourceUser, "Username already registered")
}

func userNotFound(username string) error {
	return apperr.NotFound(resourceUser, username)
}

// IsNotFound reports whether err means no user matched.
func IsNotFound(err error) bool { return apperr.IsNotFound(err) }

// IsConflict reports whether err is a duplicate-username conflict.
func IsConflict(err error) bool { return apperr.IsConflict(err) }
