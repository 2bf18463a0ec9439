package token

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// SecretEnvKey is the env var holding the signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "SHELF_TOKEN_SECRET"

	// MinSecretBytes is the minimum secret length for HMAC-SHA256 / v4.local keys.
	MinSecretBytes = 32

	DefaultTTL    = 30 * time.Minute
	DefaultIssuer = "shelf"
)

// Format selects the wire format of issued tokens.
type Format string

const (
	FormatJWT    Format = "jwt"    // HS256 JWT
	FormatPaseto Format = "paseto" // PASETO v4.local
)

// Config is built once at startup and passed by value to NewService.
type Config struct {
	Secret    string        `env:"SHELF_TOKEN_SECRET"`
	TTL       time.Duration `env:"SHELF_TOKEN_TTL"`
	Issuer    string        `env:"SHELF_TOKEN_ISSUER"`
	Format    Format        `env:"SHELF_TOKEN_FORMAT"`
	ClockSkew time.Duration `env:"SHELF_TOKEN_CLOCK_SKEW"`
}

// DefaultConfig returns every default except the secret, which has none.
func DefaultConfig() Config {
	return Config{
		TTL:    DefaultTTL,
		Issuer: DefaultIssuer,
		Format: FormatJWT,
	}
}

// LoadConfigFromEnv reads SHELF_TOKEN_* on top of DefaultConfig and validates the result.
// A missing secret is an error: the server must not start without one.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("token env: %w", err)
	}
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the secret, format and durations.
func (c Config) Validate() error {
	switch {
	case c.Secret == "":
		return ErrSecretMissing
	case len(c.Secret) < MinSecretBytes:
		return fmt.Errorf("%w: need %d bytes, got %d", ErrSecretTooShort, MinSecretBytes, len(c.Secret))
	}
	switch c.Format {
	case FormatJWT, FormatPaseto:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, c.Format)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrInvalidConfig)
	}
	if c.ClockSkew < 0 || c.ClockSkew > time.Minute {
		return fmt.Errorf("%w: clock skew must be within [0, 1m]", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: issuer required", ErrInvalidConfig)
	}
	return nil
}

// LogValue keeps the secret out of logs.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("format", string(c.Format)),
		slog.String("issuer", c.Issuer),
		slog.Duration("ttl", c.TTL),
		slog.Duration("clock_skew", c.ClockSkew),
		slog.Bool("secret_set", c.Secret != ""),
	)
}
