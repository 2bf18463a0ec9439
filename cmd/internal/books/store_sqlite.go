package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore is a Store over a migrated SQLite database owned by the caller.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("books: nil sqlite db")
	}
	return &SQLiteStore{db: db}, nil
}

// Close is a no-op because the database is owned by the caller.
func (s *SQLiteStore) Close() error { return nil }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const sqliteBookColumns = `id, title, author, published_date, summary, genre`

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("books: begin: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *SQLiteStore) List(ctx context.Context, page Page) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteBookColumns+` FROM books ORDER BY id ASC LIMIT ? OFFSET ?`,
		page.Limit, page.Skip,
	)
	if err != nil {
		return nil, fmt.Errorf("books: list: %w", err)
	}
	defer rows.Close()

	out := make([]Book, 0, page.Limit)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("books: list: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("books: list: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (Book, error) {
	return sqliteGet(ctx, s.db, id)
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteGet(ctx context.Context, q sqliteQuerier, id int64) (Book, error) {
	b, err := scanBook(q.QueryRowContext(ctx,
		`SELECT `+sqliteBookColumns+` FROM books WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, notFound(id)
		}
		return Book{}, fmt.Errorf("books: get: %w", err)
	}
	return b, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Get(ctx context.Context, id int64) (Book, error) {
	return sqliteGet(ctx, t.tx, id)
}

func (t *sqliteTx) TitleTaken(ctx context.Context, title string, excludeID int64) (bool, error) {
	var taken bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM books WHERE title = ? AND id <> ?)`,
		title, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("books: title check: %w", err)
	}
	return taken, nil
}

func (t *sqliteTx) Insert(ctx context.Context, in NewBook, now time.Time) (Book, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO books (title, author, published_date, summary, genre, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Title, in.Author, in.PublishedDate.String(), in.Summary, in.Genre, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return Book{}, classifyWrite("insert", in.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Book{}, fmt.Errorf("books: insert id: %w", err)
	}
	return Book{
		ID:            id,
		Title:         in.Title,
		Author:        in.Author,
		PublishedDate: in.PublishedDate,
		Summary:       in.Summary,
		Genre:         in.Genre,
	}, nil
}

func (t *sqliteTx) Update(ctx context.Context, b Book, now time.Time) (Book, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE books
		    SET title = ?, author = ?, published_date = ?, summary = ?, genre = ?, updated_at = ?
		  WHERE id = ?`,
		b.Title, b.Author, b.PublishedDate.String(), b.Summary, b.Genre, now.UnixMilli(), b.ID,
	)
	if err != nil {
		return Book{}, classifyWrite("update", b.Title, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Book{}, notFound(b.ID)
	}
	return b, nil
}

func (t *sqliteTx) Delete(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("books: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("books: delete: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("books: commit: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

