package identity

import (
	"context"
	"time"
)

// User is a registered principal. It is immutable after creation.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUserInput describes a registration. PasswordHash must already be a
// digest; stores persist it verbatim.
type CreateUserInput struct {
	Username     string
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary.
type Store interface {
	// CreateUser inserts a user inside one transaction. A duplicate username
	// yields ErrUsernameTaken.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	// UserByUsername looks up by normalized username; a miss is an apperr NotFound.
	UserByUsername(ctx context.Context, username string) (User, error)
}

// prepare validates and normalizes in, assigning an ID.
func prepare(in CreateUserInput) (User, error) {
	username, err := ValidateUsername(in.Username)
	if err != nil {
		return User{}, err
	}
	if in.PasswordHash == "" {
		return User{}, errMissingHash
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	id, err := NewID(now)
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Username: username, PasswordHash: in.PasswordHash, CreatedAt: now}, nil
}
