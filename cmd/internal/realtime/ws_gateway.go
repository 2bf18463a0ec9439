package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"shelf/cmd/internal/auth/resolver"
	"shelf/cmd/internal/metrics"

	"github.com/coder/websocket"
)

const (
	transportWS = "ws"

	wsDefaultWriteTimeout     = 5 * time.Second
	wsDefaultHeartbeat        = 25 * time.Second
	wsDefaultHeartbeatTimeout = 5 * time.Second
	wsMaxPingFailures         = 3

	// Subscribers only listen; anything larger than a close frame is abuse.
	wsMaxFrameBytes = 1 << 10
)

// WSGateway serves the update stream as JSON text frames over WebSocket.
// Identity is resolved by the middleware in front of it, before the upgrade.
type WSGateway struct {
	log     *slog.Logger
	ticker  *Ticker
	metrics *metrics.Metrics

	// anyOrigin disables the origin check of websocket.Accept.
	anyOrigin      bool
	originPatterns []string

	writeTimeout     time.Duration
	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

type WSOption func(*WSGateway)

// WithAllowedOrigins restricts cross-origin upgrades to the hosts of the
// given origins. "*" allows every origin.
func WithAllowedOrigins(origins []string) WSOption {
	return func(g *WSGateway) {
		g.anyOrigin = slices.Contains(origins, "*")
		g.originPatterns = originPatterns(origins)
	}
}

func WithHeartbeat(every, timeout time.Duration) WSOption {
	return func(g *WSGateway) {
		if every > 0 {
			g.heartbeatEvery = every
		}
		if timeout > 0 {
			g.heartbeatTimeout = timeout
		}
	}
}

func WithWriteTimeout(d time.Duration) WSOption {
	return func(g *WSGateway) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// NewWSGateway returns a gateway accepting same-host origins only unless
// WithAllowedOrigins says otherwise.
func NewWSGateway(log *slog.Logger, ticker *Ticker, m *metrics.Metrics, opts ...WSOption) *WSGateway {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if ticker == nil {
		ticker = NewTicker(DefaultInterval)
	}
	g := &WSGateway{
		log:              log,
		ticker:           ticker,
		metrics:          m,
		writeTimeout:     wsDefaultWriteTimeout,
		heartbeatEvery:   wsDefaultHeartbeat,
		heartbeatTimeout: wsDefaultHeartbeatTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.anyOrigin,
	})
	if err != nil {
		// Accept has already written the rejection.
		g.log.InfoContext(r.Context(), "ws.accept.fail", "err", err, "origin", r.Header.Get("Origin"))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(wsMaxFrameBytes)

	// CloseRead keeps reading control frames (pongs, close) and cancels
	// the returned context once the peer goes away.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	subject, _ := resolver.Subject(ctx)
	started := time.Now()
	done := g.metrics.StreamOpened(transportWS)
	defer done()

	g.log.InfoContext(ctx, "stream.open", "transport", transportWS, "subject", subject)

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, cancel, conn, subject)
	}()

	sent := 0
	err = g.ticker.Run(ctx, func(ev Event) error {
		if err := writeEvent(ctx, conn, ev, g.writeTimeout); err != nil {
			return err
		}
		sent++
		g.metrics.StreamEvent(transportWS)
		return nil
	})

	switch {
	case r.Context().Err() != nil:
		// Server shutdown or the HTTP request itself went away.
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	case err != nil && !errors.Is(err, context.Canceled):
		_ = conn.Close(websocket.StatusInternalError, "write failed")
	}
	cancel()
	<-heartbeatDone

	g.log.InfoContext(context.WithoutCancel(ctx), "stream.close",
		"transport", transportWS,
		"subject", subject,
		"events", sent,
		"reason", closeReason(err),
		"close_status", int(websocket.CloseStatus(err)),
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

// heartbeat pings the peer and cancels the stream after too many
// consecutive failures.
func (g *WSGateway) heartbeat(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, subject string) {
	t := time.NewTicker(g.heartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		pingCtx, pingCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
		err := conn.Ping(pingCtx)
		pingCancel()

		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return
		}
		failures++
		g.log.InfoContext(ctx, "ws.ping.fail", "subject", subject, "failures", failures, "err", err)
		if failures >= wsMaxPingFailures {
			_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
			cancel()
			return
		}
	}
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev Event, timeout time.Duration) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, b)
}

// originPatterns turns allowed origins into the host patterns
// websocket.Accept matches the Origin header against.
func originPatterns(allowed []string) []string {
	out := make([]string, 0, len(allowed))
	for _, a := range allowed {
		h := originHost(a)
		if h == "" || h == "*" {
			continue
		}
		out = append(out, h)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// originHost extracts the lower-cased host from "scheme://host[:port]"
// or "host[:port]".
func originHost(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Host
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	return strings.ToLower(strings.TrimSpace(s))
}
