// Package realtime serves the book update notification stream over
// server-sent events and WebSocket.
package realtime

import (
	"context"
	"time"
)

const (
	// DefaultInterval is the pause between two update events.
	DefaultInterval = 5 * time.Second

	// UpdateMessage is the message carried by every update event.
	UpdateMessage = "Book update received"
)

// Event is one notification pushed to a stream subscriber.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Ticker paces update events for a single subscriber. It holds no
// per-stream state, so one Ticker serves every open stream.
type Ticker struct {
	interval time.Duration
	now      func() time.Time
}

// NewTicker returns a Ticker emitting every interval. Non-positive
// intervals fall back to DefaultInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{interval: interval, now: time.Now}
}

func (t *Ticker) Interval() time.Duration { return t.interval }

// Run hands the first event to emit right away and one more per interval
// until ctx is done or emit fails. It returns ctx.Err() or the emit error.
func (t *Ticker) Run(ctx context.Context, emit func(Event) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := emit(t.event()); err != nil {
		return err
	}

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
		}
		if err := emit(t.event()); err != nil {
			return err
		}
	}
}

func (t *Ticker) event() Event {
	return Event{Timestamp: t.now().UTC(), Message: UpdateMessage}
}
