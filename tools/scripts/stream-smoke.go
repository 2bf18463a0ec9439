// Package main is a CI-friendly smoke test for a running shelf server.
//
// It validates:
//   - register (or login, when the user exists) yields a bearer token
//   - the update stream rejects a missing token with 401
//   - the SSE stream delivers update events
//   - the WebSocket stream delivers the same events as text frames
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	streamPath   = "/api/books/books/stream"
	wantMessage  = "Book update received"
	maxReadBytes = 1 << 16
)

type event struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func main() {
	var (
		base    = flag.String("url", "http://127.0.0.1:8080", "server base URL")
		user    = flag.String("user", "smoke", "username to register or log in")
		pass    = flag.String("password", "smoke-password-123", "password for -user")
		events  = flag.Int("events", 2, "events to read per transport")
		timeout = flag.Duration("timeout", 15*time.Second, "per-step timeout")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	u, err := url.Parse(*base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fatalf("invalid -url %q", *base)
	}
	client := &http.Client{Timeout: *timeout}

	tok := mustToken(client, *base, *user, *pass)
	if *verbose {
		fmt.Printf("token acquired for %q\n", *user)
	}

	mustRejectAnonymous(client, *base+streamPath+"/updates")

	root := context.Background()
	sse := mustReadSSE(root, *base+streamPath+"/updates", tok, *events, *timeout)
	ws := mustReadWS(root, wsURL(u)+streamPath+"/ws", tok, *events, *timeout)

	fmt.Printf("OK: sse=%d ws=%d last=%s\n", sse, ws, time.Now().UTC().Format(time.RFC3339))
}

func mustToken(client *http.Client, base, user, pass string) string {
	body, _ := json.Marshal(map[string]string{"username": user, "password": pass})
	resp, err := client.Post(base+"/api/auth/register", "application/json", strings.NewReader(string(body)))
	if err != nil {
		fatalf("register: %v", err)
	}
	tok, status := readToken(resp)
	if status == http.StatusOK {
		return tok
	}
	if status != http.StatusConflict {
		fatalf("register: unexpected status %d", status)
	}

	form := url.Values{"username": {user}, "password": {pass}}
	resp, err = client.PostForm(base+"/api/auth/login", form)
	if err != nil {
		fatalf("login: %v", err)
	}
	tok, status = readToken(resp)
	if status != http.StatusOK {
		fatalf("login: unexpected status %d", status)
	}
	return tok
}

func readToken(resp *http.Response) (string, int) {
	defer resp.Body.Close()
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fatalf("decode token: %v", err)
		}
	}
	return out.AccessToken, resp.StatusCode
}

func mustRejectAnonymous(client *http.Client, target string) {
	resp, err := client.Get(target)
	if err != nil {
		fatalf("anonymous stream: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		fatalf("anonymous stream: status %d, want 401", resp.StatusCode)
	}
}

func mustReadSSE(parent context.Context, target, tok string, n int, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		fatalf("sse request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("sse connect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fatalf("sse: status %d", resp.StatusCode)
	}

	got := 0
	sc := bufio.NewScanner(resp.Body)
	for got < n && sc.Scan() {
		payload, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		mustEvent("sse", []byte(payload))
		got++
	}
	if got < n {
		fatalf("sse: read %d of %d events: %v", got, n, sc.Err())
	}
	return got
}

func mustReadWS(parent context.Context, target, tok string, n int, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, target, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + tok}},
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("ws connect: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "smoke done") }()
	conn.SetReadLimit(maxReadBytes)

	for i := 0; i < n; i++ {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			fatalf("ws read %d: %v", i, err)
		}
		if typ != websocket.MessageText {
			fatalf("ws read %d: frame type %v, want text", i, typ)
		}
		mustEvent("ws", data)
	}
	return n
}

func mustEvent(transport string, data []byte) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		fatalf("%s: decode %q: %v", transport, data, err)
	}
	if ev.Message != wantMessage {
		fatalf("%s: message %q, want %q", transport, ev.Message, wantMessage)
	}
	if ev.Timestamp.IsZero() {
		fatalf("%s: %v", transport, errors.New("event without timestamp"))
	}
}

func wsURL(u *url.URL) string {
	cp := *u
	if cp.Scheme == "https" {
		cp.Scheme = "wss"
	} else {
		cp.Scheme = "ws"
	}
	cp.Path = ""
	return strings.TrimRight(cp.String(), "/")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
