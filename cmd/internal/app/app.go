// Package app wires the shelf server runtime: config, logging, stores,
// HTTP routes and the update streams.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"shelf/cmd/internal/auth"
	authapi "shelf/cmd/internal/auth/api"
	"shelf/cmd/internal/auth/resolver"
	"shelf/cmd/internal/books"
	booksapi "shelf/cmd/internal/books/api"
	"shelf/cmd/internal/metrics"
	"shelf/cmd/internal/realtime"
	"shelf/cmd/security/token"

	"github.com/redis/go-redis/v9"
)

// App owns the server's dependencies and their lifecycle.
type App struct {
	cfg     Config
	log     Logger
	backend *backend
	metrics *metrics.Metrics
	redis   *redis.Client
	handler http.Handler

	// streams is cancelled when shutdown begins so long-lived streams end
	// instead of holding Shutdown open until its deadline.
	streams     context.Context
	stopStreams context.CancelFunc
}

// New builds a fully wired App. ctx bounds startup work only.
func New(ctx context.Context, cfg Config, sec Security, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(sec); err != nil {
		return nil, err
	}

	tokens, err := token.NewService(sec.Token)
	if err != nil {
		return nil, err
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, backend: be, metrics: metrics.New()}
	a.streams, a.stopStreams = context.WithCancel(context.Background())

	if err := a.wire(ctx, sec, tokens); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, sec Security, tokens *token.Service) error {
	authCfg := authapi.Config{
		TrustProxy:   a.cfg.TrustProxy,
		MaxBodyBytes: a.cfg.MaxBodyBytes,
		LoginIPMax:   a.cfg.LoginIPMax,
		LoginUserMax: a.cfg.LoginUserMax,
		LoginWindow:  a.cfg.LoginWindow,
	}

	var throttle authapi.Throttle = authapi.NoopThrottle{}
	if a.cfg.RedisURL != "" {
		client, err := authapi.ConnectRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("login throttle: %w", err)
		}
		a.redis = client
		throttle = authapi.NewRedisThrottle(client, authCfg)
		a.log.Info("auth.throttle.enabled", "ip_max", authCfg.LoginIPMax, "user_max", authCfg.LoginUserMax, "window", authCfg.LoginWindow)
	}

	authSvc, err := auth.NewService(a.backend.users, sec.Password, tokens, a.log)
	if err != nil {
		return err
	}
	authH, err := authapi.NewHandler(a.log, authSvc, authCfg,
		authapi.WithThrottle(throttle),
		authapi.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}

	booksH, err := booksapi.NewHandler(a.log, books.NewService(a.backend.books, a.log), a.cfg.MaxBodyBytes)
	if err != nil {
		return err
	}

	ticker := realtime.NewTicker(a.cfg.StreamInterval)
	a.handler = a.routes(routeDeps{
		resolver: resolver.New(tokens, a.log),
		auth:     authH,
		books:    booksH,
		sse:      realtime.NewSSEHandler(a.log, ticker, a.metrics),
		ws: realtime.NewWSGateway(a.log, ticker, a.metrics,
			realtime.WithAllowedOrigins(a.cfg.CORSAllowedOrigins),
		),
	})

	a.log.Info("app.wired",
		"store", a.backend.kind,
		"token", sec.Token,
		"password_algorithm", sec.Password.Algorithm,
		"stream_interval", a.cfg.StreamInterval,
	)
	return nil
}

// Handler is the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// down gracefully within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(a.stopStreams)

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.backend.kind)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	// Whatever is still running (hijacked WebSockets included) ends now.
	cancelBase()
	if err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Close releases the store, pool and Redis client.
func (a *App) Close() error {
	a.stopStreams()
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	return errors.Join(errs...)
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
