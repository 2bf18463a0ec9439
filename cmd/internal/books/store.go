package books

import (
	"context"
	"time"
)

// Page selects a window of the catalogue ordered by id.
type Page struct {
	Skip  int
	Limit int
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Store persists books.
//
// Stores do not own their connection pools; Close releases only what the
// store itself allocated.
type Store interface {
	// Begin opens a write transaction. The caller must Commit or Rollback it.
	Begin(ctx context.Context) (Tx, error)
	List(ctx context.Context, page Page) ([]Book, error)
	// Get returns an apperr NotFound when id is absent.
	Get(ctx context.Context, id int64) (Book, error)
	Ping(ctx context.Context) error
	Close() error
}

// Tx is one write transaction. Rollback after Commit is a no-op.
type Tx interface {
	Get(ctx context.Context, id int64) (Book, error)
	// TitleTaken reports whether another book (id != excludeID) has title.
	TitleTaken(ctx context.Context, title string, excludeID int64) (bool, error)
	// Insert and Update report a unique-title violation as ErrDuplicateTitle.
	Insert(ctx context.Context, in NewBook, now time.Time) (Book, error)
	Update(ctx context.Context, b Book, now time.Time) (Book, error)
	// Delete returns an apperr NotFound when id is absent.
	Delete(ctx context.Context, id int64) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
