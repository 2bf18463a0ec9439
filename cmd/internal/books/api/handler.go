// Package booksapi serves the protected book catalogue endpoints.
package booksapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/auth/resolver"
	"shelf/cmd/internal/books"
	"shelf/cmd/internal/httpx"

	"github.com/go-chi/chi/v5"
)

// Catalogue is the book service behind the handlers.
type Catalogue interface {
	Create(ctx context.Context, in books.NewBook) (books.Book, error)
	List(ctx context.Context, page books.Page) ([]books.Book, error)
	Get(ctx context.Context, id int64) (books.Book, error)
	Update(ctx context.Context, id int64, p books.Patch) (books.Book, error)
	Delete(ctx context.Context, id int64) error
}

// Handler exposes Catalogue over HTTP. Routes assume an identity resolver
// runs in front of them.
type Handler struct {
	log          *slog.Logger
	books        Catalogue
	maxBodyBytes int64
}

// NewHandler builds a Handler.
func NewHandler(log *slog.Logger, c Catalogue, maxBodyBytes int64) (*Handler, error) {
	if c == nil {
		return nil, errors.New("booksapi: nil catalogue")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, books: c, maxBodyBytes: maxBodyBytes}, nil
}

// Routes mounts the collection and item routes on r. Both "/" and "" reach
// the collection.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	b, err := h.books.Create(r.Context(), req.toNewBook())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	h.log.InfoContext(r.Context(), "books.create", "id", b.ID, "actor", actor(r))
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	out, err := h.books.List(r.Context(), page)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	b, err := h.books.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	var req patchRequest
	if err := httpx.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	b, err := h.books.Update(r.Context(), id, req.toPatch())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	h.log.InfoContext(r.Context(), "books.update", "id", b.ID, "actor", actor(r))
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if err := h.books.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	h.log.InfoContext(r.Context(), "books.delete", "id", id, "actor", actor(r))
	httpx.WriteJSON(w, http.StatusOK, httpx.Message{Message: "Book deleted successfully"})
}

func actor(r *http.Request) string {
	s, _ := resolver.Subject(r.Context())
	return s
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validationf("id must be an integer, got %q", raw)
	}
	return id, nil
}

// parsePage reads skip/limit. Absent values take the defaults; out-of-range
// values are rejected by the service.
func parsePage(r *http.Request) (books.Page, error) {
	page := books.Page{Skip: 0, Limit: books.DefaultLimit}
	q := r.URL.Query()
	if raw := q.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return books.Page{}, apperr.Validation("skip must be an integer")
		}
		page.Skip = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return books.Page{}, apperr.Validation("limit must be an integer")
		}
		page.Limit = n
	}
	return page, nil
}
