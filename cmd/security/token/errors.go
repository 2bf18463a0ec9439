package token

import (
	"errors"
	"fmt"
)

// Public, stable errors for callers.
var (
	ErrSecretMissing  = errors.New("token secret missing")
	ErrSecretTooShort = errors.New("token secret too short")
	ErrUnknownFormat  = errors.New("token format unknown")
	ErrInvalidConfig  = errors.New("token config invalid")

	// ErrInvalidToken is the only error Verify returns to callers' boundaries.
	ErrInvalidToken = errors.New("invalid token")
)

// Verify failure reasons, wrapped under ErrInvalidToken.
var (
	ErrMalformed = errors.New("malformed")
	ErrSignature = errors.New("signature mismatch")
	ErrExpired   = errors.New("expired")
	ErrIssuer    = errors.New("issuer mismatch")
	ErrSubject   = errors.New("subject missing")
)

func invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, reason)
}

// Reason returns the wrapped verify failure reason, or nil if err carries none.
func Reason(err error) error {
	for _, r := range []error{ErrMalformed, ErrSignature, ErrExpired, ErrIssuer, ErrSubject} {
		if errors.Is(err, r) {
			return r
		}
	}
	return nil
}
