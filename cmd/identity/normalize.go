package identity

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"shelf/cmd/identity/ids"
	"shelf/cmd/internal/apperr"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 64
)

var errMissingHash = errors.New("identity: password hash is required")

// NormalizeUsername performs case-insensitive canonicalization (trim + lower-case).
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername normalizes s and checks length and charset.
// Allowed: letters, digits, '.', '_' and '-'.
func ValidateUsername(s string) (string, error) {
	n := NormalizeUsername(s)
	l := utf8.RuneCountInString(n)
	if l < MinUsernameLen || l > MaxUsernameLen {
		return "", apperr.Validationf("username must be between %d and %d characters", MinUsernameLen, MaxUsernameLen)
	}
	for _, r := range n {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			continue
		}
		return "", apperr.Validation("username may only contain letters, digits, '.', '_' and '-'")
	}
	return n, nil
}

// NewID returns a new user ID (26-char ULID).
func NewID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
