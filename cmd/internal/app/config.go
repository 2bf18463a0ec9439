package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SHELF_HTTP_ADDR.
	EnvPrefix = "SHELF_"

	// ConfigEnvKey names the optional YAML config file.
	ConfigEnvKey = "SHELF_CONFIG"
)

// Config is the runtime configuration. Secrets are not part of it; they
// are read by the security packages straight from the environment.
type Config struct {
	HTTPAddr  string `koanf:"http_addr"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	ReadHeaderTimeout time.Duration `koanf:"http_read_header_timeout"`
	ReadTimeout       time.Duration `koanf:"http_read_timeout"`
	WriteTimeout      time.Duration `koanf:"http_write_timeout"`
	IdleTimeout       time.Duration `koanf:"http_idle_timeout"`
	MaxHeaderBytes    int           `koanf:"http_max_header_bytes"`
	ShutdownTimeout   time.Duration `koanf:"http_shutdown_timeout"`

	// DatabaseURL selects Postgres. Without it SQLitePath is used, and
	// without both the in-memory store.
	DatabaseURL    string `koanf:"database_url"`
	DatabaseSchema string `koanf:"database_schema"`
	DBMaxConns     int32  `koanf:"db_max_conns"`
	DBMinConns     int32  `koanf:"db_min_conns"`
	SQLitePath     string `koanf:"sqlite_path"`

	// RedisURL enables login throttling.
	RedisURL string `koanf:"redis_url"`

	// If true, /readyz returns 503 while running on the in-memory store.
	ReadinessRequireDB bool `koanf:"readiness_require_db"`

	CORSAllowedOrigins   []string `koanf:"cors_allowed_origins"`
	CORSAllowCredentials bool     `koanf:"cors_allow_credentials"`
	CORSMaxAgeSeconds    int      `koanf:"cors_max_age_seconds"`

	StreamInterval time.Duration `koanf:"stream_interval"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`

	TrustProxy   bool          `koanf:"trust_proxy"`
	LoginIPMax   int           `koanf:"login_ip_max"`
	LoginUserMax int           `koanf:"login_user_max"`
	LoginWindow  time.Duration `koanf:"login_window"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:  "0.0.0.0:8080",
		LogLevel:  "info",
		LogFormat: "json",

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   10 * time.Second,

		DatabaseSchema: "shelf",
		DBMaxConns:     10,

		CORSAllowedOrigins: []string{"*"},
		CORSMaxAgeSeconds:  600,

		StreamInterval: 5 * time.Second,
		MaxBodyBytes:   1 << 20,

		LoginIPMax:   20,
		LoginUserMax: 5,
		LoginWindow:  15 * time.Minute,
	}
}

// LoadConfig layers, lowest first: DefaultConfig, the YAML file at path
// (skipped when empty) and SHELF_* environment variables.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path = strings.TrimSpace(path); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// SHELF_HTTP_ADDR -> http_addr. SHELF_CONFIG only points at the file.
	transform := func(s string) string {
		if s == ConfigEnvKey {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.HTTPAddr) == "":
		return fmt.Errorf("config: http_addr is required")
	case c.DBMinConns < 0 || c.DBMaxConns < 0:
		return fmt.Errorf("config: db connection counts must not be negative")
	case c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns:
		return fmt.Errorf("config: db_min_conns %d exceeds db_max_conns %d", c.DBMinConns, c.DBMaxConns)
	case c.StreamInterval <= 0:
		return fmt.Errorf("config: stream_interval must be positive")
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("config: max_body_bytes must be positive")
	case c.LoginWindow <= 0:
		return fmt.Errorf("config: login_window must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "pretty":
	default:
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	return nil
}

// storeKind reports which backend the config selects.
func (c Config) storeKind() string {
	switch {
	case strings.TrimSpace(c.DatabaseURL) != "":
		return "postgres"
	case strings.TrimSpace(c.SQLitePath) != "":
		return "sqlite"
	default:
		return "memory"
	}
}

// splitList flattens comma-separated entries, since env values arrive as
// one string while YAML gives a list.
func splitList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
