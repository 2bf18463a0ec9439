package app

import (
	"context"
	"net/http"
	"time"

	authapi "shelf/cmd/internal/auth/api"
	"shelf/cmd/internal/auth/resolver"
	booksapi "shelf/cmd/internal/books/api"
	"shelf/cmd/internal/httpx"
	"shelf/cmd/internal/realtime"

	"github.com/go-chi/chi/v5"
)

const (
	apiVersion   = "1.0.0"
	readyTimeout = 2 * time.Second
)

type routeDeps struct {
	resolver *resolver.Resolver
	auth     *authapi.Handler
	books    *booksapi.Handler
	sse      *realtime.SSEHandler
	ws       *realtime.WSGateway
}

type welcome struct {
	Message       string `json:"message"`
	Documentation string `json:"documentation"`
	Version       string `json:"version"`
}

type probe struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
}

func (a *App) routes(d routeDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		WithRequestID,
		func(next http.Handler) http.Handler { return WithRequestLogging(next, a.log, a.metrics) },
		func(next http.Handler) http.Handler { return WithRecover(next, a.log) },
		WithSecurityHeaders,
		func(next http.Handler) http.Handler { return WithCORS(next, a.cfg.cors(), a.log) },
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteStatus(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteStatus(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, welcome{
			Message:       "Welcome to the Books API",
			Documentation: "/api/docs",
			Version:       apiVersion,
		})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, probe{Status: "ok"})
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api/auth", d.auth.Routes)

	r.With(d.resolver.Middleware).Route("/api/books/books", func(r chi.Router) {
		d.books.Routes(r)
		r.With(a.withStreamShutdown).Get("/stream/updates", d.sse.ServeHTTP)
		r.With(a.withStreamShutdown).Get("/stream/ws", d.ws.ServeHTTP)
	})

	return r
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && !a.backend.durable() {
		httpx.WriteStatus(w, http.StatusServiceUnavailable, "Database not configured")
		return
	}
	if err := a.backend.ping(r.Context(), readyTimeout); err != nil {
		a.log.InfoContext(r.Context(), "readyz.store.not_ready", "store", a.backend.kind, "err", err)
		httpx.WriteStatus(w, http.StatusServiceUnavailable, "Store not ready")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, probe{Status: "ready", Store: a.backend.kind})
}

// withStreamShutdown ends the request context when server shutdown begins.
func (a *App) withStreamShutdown(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(a.streams, cancel)
		defer stop()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
