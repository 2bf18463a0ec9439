package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"shelf/cmd/internal/apperr"
	"shelf/cmd/internal/auth/resolver"
	"shelf/cmd/internal/httpx"
	"shelf/cmd/internal/metrics"
)

const (
	transportSSE = "sse"

	// sseWriteTimeout bounds each frame write. It replaces the server-wide
	// write timeout, which would otherwise cut every stream short.
	sseWriteTimeout = 10 * time.Second
)

// SSEHandler streams update events as text/event-stream frames. The
// stream ends only when the request context is cancelled or a write
// fails; the server never closes it on its own.
type SSEHandler struct {
	log     *slog.Logger
	ticker  *Ticker
	metrics *metrics.Metrics
}

func NewSSEHandler(log *slog.Logger, ticker *Ticker, m *metrics.Metrics) *SSEHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if ticker == nil {
		ticker = NewTicker(DefaultInterval)
	}
	return &SSEHandler{log: log, ticker: ticker, metrics: m}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	// Probe flush support before committing the status line.
	if err := rc.Flush(); err != nil {
		hdr.Del("Content-Type")
		httpx.WriteError(w, r, h.log, apperr.Internal(fmt.Errorf("sse flush: %w", err)))
		return
	}

	ctx := r.Context()
	subject, _ := resolver.Subject(ctx)
	started := time.Now()
	done := h.metrics.StreamOpened(transportSSE)
	defer done()

	h.log.InfoContext(ctx, "stream.open", "transport", transportSSE, "subject", subject)

	var (
		buf  bytes.Buffer
		sent int
	)
	err := h.ticker.Run(ctx, func(ev Event) error {
		buf.Reset()
		if err := writeFrame(&buf, ev); err != nil {
			return err
		}
		if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("sse deadline: %w", err)
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("sse write: %w", err)
		}
		if err := rc.Flush(); err != nil {
			return fmt.Errorf("sse flush: %w", err)
		}
		sent++
		h.metrics.StreamEvent(transportSSE)
		return nil
	})

	h.log.InfoContext(context.WithoutCancel(ctx), "stream.close",
		"transport", transportSSE,
		"subject", subject,
		"events", sent,
		"reason", closeReason(err),
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

// writeFrame encodes ev as a single "data:" frame.
func writeFrame(buf *bytes.Buffer, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	buf.WriteString("data: ")
	buf.Write(b)
	buf.WriteString("\n\n")
	return nil
}

func closeReason(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "disconnect"
	default:
		return "write_failed"
	}
}
