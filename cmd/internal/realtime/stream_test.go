package realtime

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTicker_FirstEventIsImmediate(t *testing.T) {
	t.Parallel()

	tk := NewTicker(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- tk.Run(ctx, func(ev Event) error {
			got <- ev
			return nil
		})
	}()

	select {
	case ev := <-got:
		if ev.Message != UpdateMessage {
			t.Fatalf("message = %q, want %q", ev.Message, UpdateMessage)
		}
		if ev.Timestamp.IsZero() || ev.Timestamp.Location() != time.UTC {
			t.Fatalf("timestamp = %v, want non-zero UTC", ev.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first event not emitted immediately")
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTicker_EmitsEveryInterval(t *testing.T) {
	t.Parallel()

	tk := NewTicker(10 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := 0
	stop := errors.New("stop")
	err := tk.Run(ctx, func(Event) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Run err = %v, want emit error", err)
	}
	if n != 3 {
		t.Fatalf("events = %d, want 3", n)
	}
}

func TestTicker_EndsWithinOneIntervalAfterCancel(t *testing.T) {
	t.Parallel()

	const interval = 200 * time.Millisecond
	tk := NewTicker(interval)
	ctx, cancel := context.WithCancel(context.Background())

	first := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		once := false
		errc <- tk.Run(ctx, func(Event) error {
			if !once {
				once = true
				close(first)
			}
			return nil
		})
	}()

	<-first
	cancel()
	start := time.Now()
	select {
	case <-errc:
		if el := time.Since(start); el > interval {
			t.Fatalf("Run took %v after cancel, want <= %v", el, interval)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTicker_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewTicker(time.Millisecond).Run(ctx, func(Event) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if called {
		t.Fatal("emit called on a cancelled context")
	}
}

func TestNewTicker_DefaultsInterval(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{0, -time.Second} {
		if got := NewTicker(d).Interval(); got != DefaultInterval {
			t.Fatalf("NewTicker(%v).Interval() = %v, want %v", d, got, DefaultInterval)
		}
	}
}
