package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/stream"
}

func TestWSGateway_RequiresToken(t *testing.T) {
	t.Parallel()

	tokens := newTokens(t)
	srv, returned := streamServer(t, tokens, NewWSGateway(nil, NewTicker(10*time.Millisecond), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, wsURL(srv.URL), nil)
	if err == nil {
		_ = conn.CloseNow()
		t.Fatal("handshake succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("status = %d, want 401 (err %v)", status, err)
	}

	select {
	case <-returned:
		t.Fatal("gateway ran without identity")
	default:
	}
}

func TestWSGateway_StreamsAndStopsOnClose(t *testing.T) {
	t.Parallel()

	const interval = 100 * time.Millisecond
	tokens := newTokens(t)
	srv, returned := streamServer(t, tokens, NewWSGateway(nil, NewTicker(interval), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv.URL), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{bearer(t, tokens)}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.CloseNow() }()

	for i := 0; i < 2; i++ {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if typ != websocket.MessageText {
			t.Fatalf("frame type = %v, want text", typ)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if ev.Message != UpdateMessage {
			t.Fatalf("message = %q", ev.Message)
		}
	}

	_ = conn.Close(websocket.StatusNormalClosure, "done")

	select {
	case <-returned:
	case <-time.After(interval + time.Second):
		t.Fatal("gateway still running after close")
	}
}

func TestOriginPatterns(t *testing.T) {
	t.Parallel()

	got := originPatterns([]string{
		"https://App.example.com:8443",
		"*",
		"localhost:3000",
		"http://localhost",
		" ",
	})
	want := []string{"app.example.com", "localhost"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("originPatterns = %v, want %v", got, want)
	}
}

func TestWithAllowedOrigins_Wildcard(t *testing.T) {
	t.Parallel()

	g := NewWSGateway(nil, nil, nil, WithAllowedOrigins([]string{"*"}))
	if !g.anyOrigin {
		t.Fatal("wildcard origin did not disable the origin check")
	}
	g = NewWSGateway(nil, nil, nil, WithAllowedOrigins([]string{"http://localhost"}))
	if g.anyOrigin {
		t.Fatal("explicit origin list disabled the origin check")
	}
}
