package app

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "shelf.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("cfg = %+v\nwant %+v", cfg, want)
	}
	if cfg.storeKind() != "memory" {
		t.Fatalf("storeKind = %q, want memory", cfg.storeKind())
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfigFile(t, `
http_addr: "127.0.0.1:9000"
log_format: pretty
sqlite_path: /tmp/shelf.db
stream_interval: 2s
cors_allowed_origins:
  - https://a.example
  - https://b.example
login_user_max: 3
`)
	t.Setenv("SHELF_HTTP_ADDR", "127.0.0.1:9100")
	t.Setenv("SHELF_LOGIN_WINDOW", "1m")
	t.Setenv("SHELF_DB_MAX_CONNS", "4")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTPAddr != "127.0.0.1:9100" {
		t.Fatalf("env did not override file: http_addr=%q", cfg.HTTPAddr)
	}
	if cfg.LogFormat != "pretty" || cfg.SQLitePath != "/tmp/shelf.db" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.StreamInterval != 2*time.Second || cfg.LoginWindow != time.Minute {
		t.Fatalf("durations: stream=%v window=%v", cfg.StreamInterval, cfg.LoginWindow)
	}
	if cfg.LoginUserMax != 3 || cfg.DBMaxConns != 4 {
		t.Fatalf("ints: user_max=%d max_conns=%d", cfg.LoginUserMax, cfg.DBMaxConns)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Fatalf("origins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
	if cfg.LoginIPMax != DefaultConfig().LoginIPMax {
		t.Fatalf("unset key lost its default: login_ip_max=%d", cfg.LoginIPMax)
	}
	if cfg.storeKind() != "sqlite" {
		t.Fatalf("storeKind = %q, want sqlite", cfg.storeKind())
	}
}

func TestLoadConfig_EnvList(t *testing.T) {
	t.Setenv("SHELF_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SHELF_DATABASE_URL", "postgres://localhost/shelf")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Fatalf("origins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
	if cfg.storeKind() != "postgres" {
		t.Fatalf("storeKind = %q, want postgres", cfg.storeKind())
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad log format", env: map[string]string{"SHELF_LOG_FORMAT": "xml"}},
		{name: "zero interval", env: map[string]string{"SHELF_STREAM_INTERVAL": "0s"}},
		{name: "min above max", env: map[string]string{"SHELF_DB_MIN_CONNS": "20", "SHELF_DB_MAX_CONNS": "5"}},
		{name: "unreadable file", file: filepath.Join(t.TempDir(), "missing.yaml")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(tc.file); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := splitList([]string{" a ,b", "", "c", " , "})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
}
