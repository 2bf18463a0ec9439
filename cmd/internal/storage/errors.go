package storage

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// pgUniqueViolation is SQLSTATE unique_violation.
const pgUniqueViolation = "23505"

// UniqueViolation describes a unique-constraint failure reported by a driver.
type UniqueViolation struct {
	// Constraint is the constraint name when the driver reports one (Postgres),
	// otherwise the "table.column" list parsed from the SQLite message.
	Constraint string
}

// AsUniqueViolation classifies err as a unique-constraint failure from either driver.
func AsUniqueViolation(err error) (UniqueViolation, bool) {
	if err == nil {
		return UniqueViolation{}, false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return UniqueViolation{}, false
		}
		return UniqueViolation{Constraint: strings.ToLower(pgErr.ConstraintName)}, true
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return UniqueViolation{Constraint: sqliteConstraintColumns(sqliteErr.Error())}, true
		}
		return UniqueViolation{}, false
	}

	// Wrapped driver errors sometimes only survive as text.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") {
		return UniqueViolation{Constraint: sqliteConstraintColumns(msg)}, true
	}
	return UniqueViolation{}, false
}

// Mentions reports whether the violated constraint refers to name
// (a constraint name or a column).
func (u UniqueViolation) Mentions(name string) bool {
	return strings.Contains(u.Constraint, strings.ToLower(name))
}

// sqliteConstraintColumns extracts "books.title" from
// "UNIQUE constraint failed: books.title (2067)".
func sqliteConstraintColumns(msg string) string {
	lower := strings.ToLower(msg)
	const marker = "constraint failed:"
	i := strings.Index(lower, marker)
	if i == -1 {
		return ""
	}
	rest := strings.TrimSpace(lower[i+len(marker):])
	if j := strings.Index(rest, " ("); j != -1 {
		rest = rest[:j]
	}
	return rest
}
