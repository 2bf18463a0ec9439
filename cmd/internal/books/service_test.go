package books

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), storage.MemorySQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sq, err := NewSQLiteStore(db)
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func sampleBook(title string) NewBook {
	return NewBook{
		Title:         title,
		Author:        "Ursula K. Le Guin",
		PublishedDate: NewDate(1969, time.March, 1),
		Summary:       "Winter on Gethen.",
		Genre:         "science fiction",
	}
}

func ptr[T any](v T) *T { return &v }

func countTitle(t *testing.T, s *Service, title string) int {
	t.Helper()
	all, err := s.List(context.Background(), Page{Skip: 0, Limit: MaxLimit})
	require.NoError(t, err)
	n := 0
	for _, b := range all {
		if b.Title == title {
			n++
		}
	}
	return n
}

func TestService_CreateAndGet(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)
			ctx := context.Background()

			b, err := s.Create(ctx, sampleBook("  The Left Hand of Darkness "))
			require.NoError(t, err)
			assert.NotZero(t, b.ID)
			assert.Equal(t, "The Left Hand of Darkness", b.Title)

			got, err := s.Get(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, b, got)
		})
	}
}

func TestService_DuplicateTitle(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)
			ctx := context.Background()

			_, err := s.Create(ctx, sampleBook("Dune"))
			require.NoError(t, err)

			_, err = s.Create(ctx, sampleBook("Dune"))
			require.Error(t, err)
			assert.True(t, apperr.IsDuplicate(err))
			assert.Equal(t, 409, apperr.From(err).Status())
			assert.Equal(t, "Book conflict: Book with title 'Dune' already exists", err.Error())

			assert.Equal(t, 1, countTitle(t, s, "Dune"))
		})
	}
}

func TestService_GetMissing(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)

			_, err := s.Get(context.Background(), 42)
			require.Error(t, err)
			assert.True(t, apperr.IsNotFound(err))
			assert.Equal(t, "Book with id 42 not found", err.Error())
		})
	}
}

func TestService_UpdatePartial(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)
			ctx := context.Background()

			b, err := s.Create(ctx, sampleBook("Solaris"))
			require.NoError(t, err)

			out, err := s.Update(ctx, b.ID, Patch{Genre: ptr("philosophical sf")})
			require.NoError(t, err)
			assert.Equal(t, "philosophical sf", out.Genre)
			assert.Equal(t, b.Title, out.Title)
			assert.Equal(t, b.Author, out.Author)
			assert.Equal(t, b.PublishedDate, out.PublishedDate)

			got, err := s.Get(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, out, got)

			same, err := s.Update(ctx, b.ID, Patch{})
			require.NoError(t, err)
			assert.Equal(t, got, same)
		})
	}
}

func TestService_UpdateToExistingTitleLeavesRecord(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)
			ctx := context.Background()

			_, err := s.Create(ctx, sampleBook("Neuromancer"))
			require.NoError(t, err)
			b, err := s.Create(ctx, sampleBook("Count Zero"))
			require.NoError(t, err)

			_, err = s.Update(ctx, b.ID, Patch{Title: ptr("Neuromancer"), Genre: ptr("cyberpunk")})
			require.Error(t, err)
			assert.True(t, apperr.IsDuplicate(err))

			got, err := s.Get(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, b, got)
		})
	}
}

func TestService_UpdateMissing(t *testing.T) {
	s := NewService(NewMemoryStore(), nil)
	_, err := s.Update(context.Background(), 7, Patch{Genre: ptr("x")})
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_DeleteTwice(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)
			ctx := context.Background()

			b, err := s.Create(ctx, sampleBook("Hyperion"))
			require.NoError(t, err)

			require.NoError(t, s.Delete(ctx, b.ID))
			err = s.Delete(ctx, b.ID)
			assert.True(t, apperr.IsNotFound(err))

			_, err = s.Get(ctx, b.ID)
			assert.True(t, apperr.IsNotFound(err))
		})
	}
}

func TestService_ListBounds(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)
			ctx := context.Background()

			for _, title := range []string{"A", "B", "C", "D"} {
				_, err := s.Create(ctx, sampleBook(title))
				require.NoError(t, err)
			}

			page, err := s.List(ctx, Page{Skip: 1, Limit: 2})
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, "B", page[0].Title)
			assert.Equal(t, "C", page[1].Title)

			empty, err := s.List(ctx, Page{Skip: 10, Limit: 5})
			require.NoError(t, err)
			assert.NotNil(t, empty)
			assert.Empty(t, empty)

			for _, bad := range []Page{{Skip: -1, Limit: 10}, {Skip: 0, Limit: 0}, {Skip: 0, Limit: MaxLimit + 1}} {
				_, err := s.List(ctx, bad)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "page %+v", bad)
			}
		})
	}
}

func TestService_CreateValidation(t *testing.T) {
	s := NewService(NewMemoryStore(), nil)
	in := sampleBook("  ")
	_, err := s.Create(context.Background(), in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	in = sampleBook("No date")
	in.PublishedDate = Date{}
	_, err = s.Create(context.Background(), in)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestService_ConcurrentCreateSameTitle(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := NewService(st, nil)

			const n = 12
			var (
				wg         sync.WaitGroup
				wins, dups atomic.Int32
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Create(context.Background(), sampleBook("Foundation"))
					switch {
					case err == nil:
						wins.Add(1)
					case apperr.IsDuplicate(err):
						dups.Add(1)
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, wins.Load())
			assert.EqualValues(t, n-1, dups.Load())
			assert.Equal(t, 1, countTitle(t, s, "Foundation"))
		})
	}
}

// recordingStore wraps a Store to observe transaction usage.
type recordingStore struct {
	Store
	blindPrecheck bool
	insertErr     error

	titleChecks atomic.Int32
	rollbacks   atomic.Int32
	commits     atomic.Int32
}

func (r *recordingStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := r.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &recordingTx{Tx: tx, r: r}, nil
}

type recordingTx struct {
	Tx
	r    *recordingStore
	done bool
}

func (t *recordingTx) TitleTaken(ctx context.Context, title string, excludeID int64) (bool, error) {
	t.r.titleChecks.Add(1)
	if t.r.blindPrecheck {
		return false, nil
	}
	return t.Tx.TitleTaken(ctx, title, excludeID)
}

func (t *recordingTx) Insert(ctx context.Context, in NewBook, now time.Time) (Book, error) {
	if t.r.insertErr != nil {
		return Book{}, t.r.insertErr
	}
	return t.Tx.Insert(ctx, in, now)
}

func (t *recordingTx) Commit(ctx context.Context) error {
	t.done = true
	t.r.commits.Add(1)
	return t.Tx.Commit(ctx)
}

func (t *recordingTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.done = true
		t.r.rollbacks.Add(1)
	}
	return t.Tx.Rollback(ctx)
}

func TestService_UpdateWithoutTitleChangeSkipsUniquenessCheck(t *testing.T) {
	rec := &recordingStore{Store: NewMemoryStore()}
	s := NewService(rec, nil)
	ctx := context.Background()

	b, err := s.Create(ctx, sampleBook("Kindred"))
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.titleChecks.Load())

	_, err = s.Update(ctx, b.ID, Patch{Summary: ptr("Time travel."), Title: ptr("Kindred")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.titleChecks.Load(), "unchanged title must not be re-checked")

	_, err = s.Update(ctx, b.ID, Patch{Title: ptr("Kindred (1979)")})
	require.NoError(t, err)
	assert.EqualValues(t, 2, rec.titleChecks.Load())
}

func TestService_LateConstraintViolationIsDuplicate(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &recordingStore{Store: st, blindPrecheck: true}
			s := NewService(rec, nil)
			ctx := context.Background()

			_, err := s.Create(ctx, sampleBook("Ubik"))
			require.NoError(t, err)

			_, err = s.Create(ctx, sampleBook("Ubik"))
			require.Error(t, err)
			assert.True(t, apperr.IsDuplicate(err))
			assert.EqualValues(t, 1, rec.rollbacks.Load())
			assert.Equal(t, 1, countTitle(t, s, "Ubik"))
		})
	}
}

func TestService_StoreFailureRollsBack(t *testing.T) {
	rec := &recordingStore{Store: NewMemoryStore(), insertErr: errors.New("disk on fire")}
	s := NewService(rec, nil)

	_, err := s.Create(context.Background(), sampleBook("Blindsight"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternalStore, apperr.KindOf(err))
	assert.Equal(t, "Internal database error occurred", apperr.From(err).Message)
	assert.EqualValues(t, 1, rec.rollbacks.Load())
	assert.EqualValues(t, 0, rec.commits.Load())

	// The store stays usable after the aborted transaction.
	rec.insertErr = nil
	_, err = s.Create(context.Background(), sampleBook("Blindsight"))
	require.NoError(t, err)
}
