package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/storage"
)

// SQLiteStore implements Store over a database/sql SQLite handle owned by the caller.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open, migrated SQLite database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("identity: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

// CreateUser inserts the user in one transaction.
func (s *SQLiteStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	u, err := prepare(in)
	if err != nil {
		return User{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, apperr.InternalStore(fmt.Errorf("%s: begin: %w", op, err))
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if uv, ok := storage.AsUniqueViolation(err); ok && uv.Mentions("username") {
			return User{}, ErrUsernameTaken()
		}
		return User{}, apperr.InternalStore(fmt.Errorf("%s: insert: %w", op, err))
	}
	if err := tx.Commit(); err != nil {
		return User{}, apperr.InternalStore(fmt.Errorf("%s: commit: %w", op, err))
	}

	// Stored with millisecond precision.
	u.CreatedAt = u.CreatedAt.Truncate(time.Millisecond)
	return u, nil
}

// UserByUsername returns the user with the normalized username.
func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.UserByUsername"

	n := NormalizeUsername(username)
	var (
		u         User
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, n,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, userNotFound(n)
		}
		return User{}, apperr.InternalStore(fmt.Errorf("%s: %w", op, err))
	}
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	return u, nil
}
