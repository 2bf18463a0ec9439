// Package authapi serves the register and login endpoints.
package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"shelf/cmd/identity"
	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/httpx"
	"shelf/cmd/internal/metrics"
	"shelf/cmd/security/token"

	"github.com/go-chi/chi/v5"
)

// Authenticator is the register/login flow behind the handlers.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (token.Issued, error)
	Login(ctx context.Context, username, password string) (token.Issued, error)
}

// Handler wires HTTP auth endpoints to the auth service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	auth     Authenticator
	throttle Throttle
	metrics  *metrics.Metrics
}

// HandlerOption configures optional dependencies.
type HandlerOption func(*Handler)

// WithThrottle overrides the default no-op login throttle.
func WithThrottle(t Throttle) HandlerOption {
	return func(h *Handler) {
		if t != nil {
			h.throttle = t
		}
	}
}

// WithMetrics records login failures on m.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, auth Authenticator, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if auth == nil {
		return nil, errors.New("authapi: nil authenticator")
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		log:      log,
		cfg:      cfg.normalized(),
		auth:     auth,
		throttle: NoopThrottle{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes mounts POST /register and POST /login on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	issued, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: issued.AccessToken, TokenType: issued.TokenType})
}

// handleLogin follows the OAuth2 password-grant shape: form-encoded
// username and password.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, r, h.log, apperr.Validation("invalid form body"))
		return
	}
	form := loginForm{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}
	if err := httpx.Validate(form); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	ctx := r.Context()
	keys := LoginKeys{
		IP:       clientIP(r, h.cfg.TrustProxy),
		Username: identity.NormalizeUsername(form.Username),
	}

	// Throttling happens before the store lookup and the password hash.
	if blocked, retryAfter, err := h.throttle.Blocked(ctx, keys); err != nil {
		// Fail open: an unavailable throttle must not lock everyone out.
		h.log.ErrorContext(ctx, "auth.login.throttle.fail", "err", err)
	} else if blocked {
		h.metrics.LoginFailed("throttled")
		h.log.InfoContext(ctx, "auth.login.throttled", "retry_after_s", int64(retryAfter.Seconds()))
		if secs := int64(retryAfter.Seconds()); secs > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		}
		httpx.WriteStatus(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	issued, err := h.auth.Login(ctx, form.Username, form.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthentication {
			h.metrics.LoginFailed("bad_credentials")
			if ferr := h.throttle.Fail(ctx, keys); ferr != nil {
				h.log.ErrorContext(ctx, "auth.login.throttle.record_fail", "err", ferr)
			}
		}
		httpx.WriteError(w, r, h.log, err)
		return
	}

	if err := h.throttle.Succeed(ctx, keys); err != nil {
		h.log.WarnContext(ctx, "auth.login.throttle.reset_fail", "err", err)
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: issued.AccessToken, TokenType: issued.TokenType})
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
