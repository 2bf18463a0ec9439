package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUp(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want string
	}{
		"no markers": {in: "CREATE TABLE x (id INT);", want: "CREATE TABLE x (id INT);"},
		"up only":    {in: "-- +migrate Up\nCREATE TABLE x;", want: "\nCREATE TABLE x;"},
		"up and down": {
			in:   "-- +migrate Up\nCREATE TABLE x;\n-- +migrate Down\nDROP TABLE x;",
			want: "\nCREATE TABLE x;\n",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractUp(tc.in))
		})
	}
}

func TestLoadMigrations_Sorted(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{"migrations/postgres", "migrations/sqlite"} {
		migs, err := loadMigrations(dir)
		require.NoError(t, err)
		require.NotEmpty(t, migs)
		for i := 1; i < len(migs); i++ {
			assert.Less(t, migs[i-1].name, migs[i].name)
		}
		for _, m := range migs {
			assert.NotContains(t, m.up, "DROP TABLE", "down section leaked into %s/%s", dir, m.name)
		}
	}
}

func TestOpenSQLite_MigrationsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, MemorySQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	applied, err := ApplySQLiteMigrations(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied, "second run must not re-apply migrations")

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestAsUniqueViolation_SQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, MemorySQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	insert := `INSERT INTO books (title, author, published_date, summary, genre, created_at, updated_at)
		VALUES (?, 'a', '2020-01-01', 's', 'g', 0, 0)`
	_, err = db.ExecContext(ctx, insert, "Dune")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "Dune")
	require.Error(t, err)

	uv, ok := AsUniqueViolation(fmt.Errorf("insert book: %w", err))
	require.True(t, ok, "expected unique violation, got %v", err)
	assert.True(t, uv.Mentions("title"), "constraint=%q", uv.Constraint)
	assert.False(t, uv.Mentions("username"))
}

func TestAsUniqueViolation_Foreign(t *testing.T) {
	t.Parallel()

	_, ok := AsUniqueViolation(nil)
	assert.False(t, ok)
	_, ok = AsUniqueViolation(errors.New("connection refused"))
	assert.False(t, ok)

	uv, ok := AsUniqueViolation(errors.New("UNIQUE constraint failed: users.username (2067)"))
	require.True(t, ok)
	assert.Equal(t, "users.username", uv.Constraint)
}

func TestValidSchema(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidSchema("shelf"))
	assert.True(t, ValidSchema("shelf_it_01"))
	assert.False(t, ValidSchema(""))
	assert.False(t, ValidSchema("1abc"))
	assert.False(t, ValidSchema(`x"; DROP SCHEMA public; --`))
}
