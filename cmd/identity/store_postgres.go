package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default storage.DefaultSchema).
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !storage.ValidSchema(schema) {
			return fmt.Errorf("identity: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: storage.DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return st, nil
}

// CreateUser inserts the user in a ReadCommitted transaction. The unique
// constraint on username is authoritative for concurrent registrations.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	u, err := prepare(in)
	if err != nil {
		return User{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return User{}, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO `+storage.PgIdent(s.schema, "users")+` (id, username, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if uv, ok := storage.AsUniqueViolation(err); ok && uv.Mentions("username") {
			return User{}, ErrUsernameTaken()
		}
		return User{}, apperr.InternalStore(fmt.Errorf("%s: insert: %w", op, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, apperr.InternalStore(fmt.Errorf("%s: commit: %w", op, err))
	}
	return u, nil
}

// UserByUsername returns the user with the normalized username.
func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.UserByUsername"

	n := NormalizeUsername(username)
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at
		   FROM `+storage.PgIdent(s.schema, "users")+`
		  WHERE username = $1`,
		n,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, userNotFound(n)
		}
		return User{}, apperr.InternalStore(fmt.Errorf("%s: %w", op, err))
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
