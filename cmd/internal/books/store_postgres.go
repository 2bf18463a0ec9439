package books

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shelf/cmd/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// PostgresStore does not own the pgx pool; Close is a no-op.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema (default storage.DefaultSchema).
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !storage.ValidSchema(schema) {
			return fmt.Errorf("books: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
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
		return nil, errors.New("books: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return storage.PingPostgres(ctx, s.pool, 2*time.Second)
}

func (s *PostgresStore) table() string { return storage.PgIdent(s.schema, "books") }

const pgBookColumns = `id, title, author, published_date, summary, genre`

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("books: begin: %w", err)
	}
	return &pgTx{tx: tx, table: s.table()}, nil
}

func (s *PostgresStore) List(ctx context.Context, page Page) ([]Book, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgBookColumns+` FROM `+s.table()+` ORDER BY id ASC LIMIT $1 OFFSET $2`,
		page.Limit, page.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("books: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (Book, error) { return scanBook(r) })
	if err != nil {
		return nil, fmt.Errorf("books: list: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Book, error) {
	return pgGet(ctx, s.pool, s.table(), id, "")
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgGet(ctx context.Context, q pgQuerier, table string, id int64, suffix string) (Book, error) {
	b, err := scanBook(q.QueryRow(ctx,
		`SELECT `+pgBookColumns+` FROM `+table+` WHERE id = $1`+suffix, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, notFound(id)
		}
		return Book{}, fmt.Errorf("books: get: %w", err)
	}
	return b, nil
}

type pgTx struct {
	tx    pgx.Tx
	table string
}

// Get locks the row for the rest of the transaction.
func (t *pgTx) Get(ctx context.Context, id int64) (Book, error) {
	return pgGet(ctx, t.tx, t.table, id, " FOR UPDATE")
}

func (t *pgTx) TitleTaken(ctx context.Context, title string, excludeID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+t.table+` WHERE title = $1 AND id <> $2)`,
		title, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("books: title check: %w", err)
	}
	return taken, nil
}

func (t *pgTx) Insert(ctx context.Context, in NewBook, now time.Time) (Book, error) {
	b := Book{
		Title:         in.Title,
		Author:        in.Author,
		PublishedDate: in.PublishedDate,
		Summary:       in.Summary,
		Genre:         in.Genre,
	}
	err := t.tx.QueryRow(ctx,
		`INSERT INTO `+t.table+` (title, author, published_date, summary, genre, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING id`,
		b.Title, b.Author, b.PublishedDate.Time(), b.Summary, b.Genre, now,
	).Scan(&b.ID)
	if err != nil {
		return Book{}, classifyWrite("insert", b.Title, err)
	}
	return b, nil
}

func (t *pgTx) Update(ctx context.Context, b Book, now time.Time) (Book, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE `+t.table+`
		    SET title = $2, author = $3, published_date = $4, summary = $5, genre = $6, updated_at = $7
		  WHERE id = $1`,
		b.ID, b.Title, b.Author, b.PublishedDate.Time(), b.Summary, b.Genre, now,
	)
	if err != nil {
		return Book{}, classifyWrite("update", b.Title, err)
	}
	if tag.RowsAffected() == 0 {
		return Book{}, notFound(b.ID)
	}
	return b, nil
}

func (t *pgTx) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM `+t.table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("books: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("books: commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// classifyWrite maps a unique-title violation to ErrDuplicateTitle.
func classifyWrite(op, title string, err error) error {
	if uv, ok := storage.AsUniqueViolation(err); ok && uv.Mentions("title") {
		return ErrDuplicateTitle(title)
	}
	return fmt.Errorf("books: %s: %w", op, err)
}
