package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shelf/cmd/identity"
	"shelf/cmd/internal/books"
	"shelf/cmd/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// backend bundles the stores of one storage engine. The app owns the
// underlying pool or database handle; the stores only borrow it.
type backend struct {
	kind  string
	users identity.Store
	books books.Store

	pool *pgxpool.Pool
	db   *sql.DB
}

// openBackend picks Postgres, SQLite or memory from cfg and brings the
// schema up to date.
func openBackend(ctx context.Context, cfg Config, log Logger) (*backend, error) {
	switch kind := cfg.storeKind(); kind {
	case "postgres":
		pool, err := storage.NewPostgresPool(ctx, storage.PostgresConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		applied, err := storage.ApplyPostgresMigrations(ctx, pool, cfg.DatabaseSchema)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DatabaseSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		catalogue, err := books.NewPostgresStore(pool, books.WithSchema(cfg.DatabaseSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("store.open", "kind", kind, "schema", cfg.DatabaseSchema, "migrations_applied", len(applied))
		return &backend{kind: kind, users: users, books: catalogue, pool: pool}, nil

	case "sqlite":
		db, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		users, err := identity.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		catalogue, err := books.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("store.open", "kind", kind, "path", cfg.SQLitePath)
		return &backend{kind: kind, users: users, books: catalogue, db: db}, nil

	default:
		log.Warn("store.open", "kind", kind, "note", "data is lost on restart")
		return &backend{kind: kind, users: identity.NewMemoryStore(), books: books.NewMemoryStore()}, nil
	}
}

func (b *backend) durable() bool { return b.kind != "memory" }

// ping reports whether the engine answers within timeout.
func (b *backend) ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return b.books.Ping(ctx)
}

func (b *backend) Close() error {
	err := b.books.Close()
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		if cerr := b.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Migrate applies the embedded migrations to the configured SQL store and
// returns the versions it applied.
func Migrate(ctx context.Context, cfg Config, log Logger) ([]string, error) {
	switch kind := cfg.storeKind(); kind {
	case "postgres":
		pool, err := storage.NewPostgresPool(ctx, storage.PostgresConfig{URL: cfg.DatabaseURL, MaxConns: 1})
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		applied, err := storage.ApplyPostgresMigrations(ctx, pool, cfg.DatabaseSchema)
		if err != nil {
			return nil, err
		}
		log.Info("migrate.done", "kind", kind, "schema", cfg.DatabaseSchema, "applied", applied)
		return applied, nil

	case "sqlite":
		applied, err := storage.MigrateSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("migrate.done", "kind", kind, "path", cfg.SQLitePath, "applied", applied)
		return applied, nil

	default:
		return nil, fmt.Errorf("migrate: no database configured (set database_url or sqlite_path)")
	}
}
