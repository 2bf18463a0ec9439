package books

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"shelf/cmd/internal/apperr"
)

// Service implements the catalogue operations over a Store.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a Service. A nil logger discards output.
func NewService(store Store, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Create inserts a book with a unique title.
func (s *Service) Create(ctx context.Context, in NewBook) (Book, error) {
	in = in.normalized()
	if err := validateNew(in); err != nil {
		return Book{}, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Book{}, apperr.FromStore(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	taken, err := tx.TitleTaken(ctx, in.Title, 0)
	if err != nil {
		return Book{}, apperr.FromStore(err)
	}
	if taken {
		s.log.InfoContext(ctx, "books.create.duplicate", "title", in.Title, "stage", "precheck")
		return Book{}, ErrDuplicateTitle(in.Title)
	}

	b, err := tx.Insert(ctx, in, s.now())
	if err != nil {
		if apperr.IsDuplicate(err) {
			s.log.InfoContext(ctx, "books.create.duplicate", "title", in.Title, "stage", "constraint")
		}
		return Book{}, apperr.FromStore(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Book{}, apperr.FromStore(err)
	}
	return b, nil
}

// List returns one page ordered by id. Out-of-range bounds are rejected, never clamped.
func (s *Service) List(ctx context.Context, page Page) ([]Book, error) {
	if err := validatePage(page); err != nil {
		return nil, err
	}
	out, err := s.store.List(ctx, page)
	if err != nil {
		return nil, apperr.FromStore(err)
	}
	if out == nil {
		out = []Book{}
	}
	return out, nil
}

// Get returns the book with id.
func (s *Service) Get(ctx context.Context, id int64) (Book, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return Book{}, apperr.FromStore(err)
	}
	return b, nil
}

// Update applies the present fields of p. The title is re-checked only
// when p changes it.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (Book, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Book{}, apperr.FromStore(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := tx.Get(ctx, id)
	if err != nil {
		return Book{}, apperr.FromStore(err)
	}
	if p.IsEmpty() {
		if err := tx.Commit(ctx); err != nil {
			return Book{}, apperr.FromStore(err)
		}
		return cur, nil
	}

	next := p.apply(cur)
	if err := validateBook(next); err != nil {
		return Book{}, err
	}

	if p.retitles(cur) {
		taken, err := tx.TitleTaken(ctx, next.Title, id)
		if err != nil {
			return Book{}, apperr.FromStore(err)
		}
		if taken {
			s.log.InfoContext(ctx, "books.update.duplicate", "id", id, "title", next.Title)
			return Book{}, ErrDuplicateTitle(next.Title)
		}
	}

	out, err := tx.Update(ctx, next, s.now())
	if err != nil {
		return Book{}, apperr.FromStore(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Book{}, apperr.FromStore(err)
	}
	return out, nil
}

// Delete removes the book with id. Deleting a missing id is NotFound.
func (s *Service) Delete(ctx context.Context, id int64) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return apperr.FromStore(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.Delete(ctx, id); err != nil {
		return apperr.FromStore(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.FromStore(err)
	}
	return nil
}

func validatePage(p Page) error {
	if p.Skip < 0 {
		return apperr.Validation("skip must be greater than or equal to 0")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return apperr.Validationf("limit must be between 1 and %d", MaxLimit)
	}
	return nil
}

func validateNew(in NewBook) error {
	return validateBook(Book{
		Title:         in.Title,
		Author:        in.Author,
		PublishedDate: in.PublishedDate,
	})
}

func validateBook(b Book) error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return apperr.Validation("title must not be empty")
	case strings.TrimSpace(b.Author) == "":
		return apperr.Validation("author must not be empty")
	case b.PublishedDate.IsZero():
		return apperr.Validation("published_date is required")
	}
	return nil
}
