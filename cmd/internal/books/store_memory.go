package books

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a dev-only fallback when no database is configured.
//
// Write transactions are serialized: Begin waits for the previous one to
// finish, then works on a private copy that Commit publishes.
type MemoryStore struct {
	sem chan struct{} // one open write transaction at a time

	mu     sync.RWMutex
	books  map[int64]Book
	nextID int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sem:    make(chan struct{}, 1),
		books:  make(map[int64]Book),
		nextID: 1,
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	tx := &memTx{
		store:  s,
		books:  maps.Clone(s.books),
		nextID: s.nextID,
	}
	s.mu.RUnlock()
	return tx, nil
}

func (s *MemoryStore) List(ctx context.Context, page Page) ([]Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.books))
	out := make([]Book, 0, min(page.Limit, len(ids)))
	for i := page.Skip; i < len(ids) && len(out) < page.Limit; i++ {
		out = append(out, s.books[ids[i]])
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return Book{}, notFound(id)
	}
	return b, nil
}

type memTx struct {
	store  *MemoryStore
	books  map[int64]Book
	nextID int64
	done   bool
}

func (t *memTx) Get(ctx context.Context, id int64) (Book, error) {
	b, ok := t.books[id]
	if !ok {
		return Book{}, notFound(id)
	}
	return b, nil
}

func (t *memTx) TitleTaken(ctx context.Context, title string, excludeID int64) (bool, error) {
	return t.titleOwner(title, excludeID), nil
}

func (t *memTx) titleOwner(title string, excludeID int64) bool {
	for id, b := range t.books {
		if id != excludeID && b.Title == title {
			return true
		}
	}
	return false
}

func (t *memTx) Insert(ctx context.Context, in NewBook, now time.Time) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	if t.titleOwner(in.Title, 0) {
		return Book{}, ErrDuplicateTitle(in.Title)
	}
	b := Book{
		ID:            t.nextID,
		Title:         in.Title,
		Author:        in.Author,
		PublishedDate: in.PublishedDate,
		Summary:       in.Summary,
		Genre:         in.Genre,
	}
	t.nextID++
	t.books[b.ID] = b
	return b, nil
}

func (t *memTx) Update(ctx context.Context, b Book, now time.Time) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	if _, ok := t.books[b.ID]; !ok {
		return Book{}, notFound(b.ID)
	}
	if t.titleOwner(b.Title, b.ID) {
		return Book{}, ErrDuplicateTitle(b.Title)
	}
	t.books[b.ID] = b
	return b, nil
}

func (t *memTx) Delete(ctx context.Context, id int64) error {
	if _, ok := t.books[id]; !ok {
		return notFound(id)
	}
	delete(t.books, id)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	t.store.books = t.books
	t.store.nextID = t.nextID
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.finish()
	}
	return nil
}

func (t *memTx) finish() {
	t.done = true
	<-t.store.sem
}
