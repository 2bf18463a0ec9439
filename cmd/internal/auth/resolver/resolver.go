// Package resolver authenticates protected requests from their bearer token.
package resolver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/httpx"
	"shelf/cmd/security/token"
)

// Verifier checks an access token and returns its subject.
type Verifier interface {
	Verify(tok string, now time.Time) (string, error)
}

type ctxKey struct{}

// Resolver is the identity middleware in front of every protected route.
type Resolver struct {
	tokens Verifier
	log    *slog.Logger
	now    func() time.Time
}

// New returns a Resolver using tokens. A nil logger discards output.
func New(tokens Verifier, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{tokens: tokens, log: log, now: time.Now}
}

// Middleware rejects the request with 401 unless it carries a valid bearer
// token. next never runs on failure.
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, reason, err := rv.resolve(r)
		if err != nil {
			attrs := []any{"reason", reason, "path", r.URL.Path}
			if cause := token.Reason(err); cause != nil {
				attrs = append(attrs, "cause", cause.Error())
			}
			rv.log.DebugContext(r.Context(), "auth.resolve.fail", attrs...)
			httpx.WriteError(w, r, nil, apperr.Authentication(""))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
	})
}

func (rv *Resolver) resolve(r *http.Request) (subject, reason string, err error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", "missing", apperr.Authentication("")
	}
	tok, ok := bearerToken(raw)
	if !ok {
		return "", "malformed", apperr.Authentication("")
	}
	subject, err = rv.tokens.Verify(tok, rv.now())
	if err != nil {
		return "", "invalid", err
	}
	return subject, "", nil
}

// bearerToken extracts the token from "Bearer <token>" (scheme is case-insensitive).
func bearerToken(raw string) (string, bool) {
	scheme, tok, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return "", false
	}
	return tok, true
}

// WithSubject returns ctx carrying the authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKey{}, subject)
}

// Subject returns the authenticated subject stored by Middleware.
func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxKey{}).(string)
	return s, ok && s != ""
}
