package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MemorySQLitePath opens a private in-memory SQLite database.
const MemorySQLitePath = ":memory:"

// OpenSQLite opens (creating if needed) the SQLite database at path and applies migrations.
//
// SQLite allows one writer at a time, so the pool is capped at a single
// connection; transactions queue instead of failing with SQLITE_BUSY.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := ApplySQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// MigrateSQLite applies pending migrations to the database file at path
// and reports the versions it applied.
func MigrateSQLite(ctx context.Context, path string) ([]string, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return ApplySQLiteMigrations(ctx, db)
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage: sqlite path is required")
	}

	dsn := path
	if path != MemorySQLitePath {
		dsn = "file:" + filepath.Clean(path)
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// ApplySQLiteMigrations applies each embedded SQLite migration at most once.
func ApplySQLiteMigrations(ctx context.Context, db *sql.DB) (applied []string, err error) {
	if db == nil {
		return nil, fmt.Errorf("storage: sql db is required")
	}
	migs, err := loadMigrations("migrations/sqlite")
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range migs {
		if err := applySQLiteMigration(ctx, db, m); err != nil {
			if errors.Is(err, errAlreadyApplied) {
				continue
			}
			return applied, err
		}
		applied = append(applied, m.name)
	}
	return applied, nil
}

var errAlreadyApplied = errors.New("migration already applied")

func applySQLiteMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var found int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = ?`, m.name).Scan(&found)
	switch {
	case err == nil:
		return errAlreadyApplied
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check migration %s: %w", m.name, err)
	}

	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		return fmt.Errorf("exec migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
		m.name, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}
	return tx.Commit()
}
