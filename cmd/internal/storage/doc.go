// Package storage opens shelf's SQL backends and owns their schema.
//
// Postgres (pgx pool) and SQLite (modernc, pure Go) share one logical schema
// kept as embedded, ordered migrations with a schema_migrations ledger. The
// unique-violation classifier here is the single place driver errors are
// recognised as constraint conflicts.
package storage
