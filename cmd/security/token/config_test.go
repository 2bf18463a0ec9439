package token

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	t.Setenv(SecretEnvKey, "   ")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv(SecretEnvKey, strings.Repeat("k", 48))
	t.Setenv("SHELF_TOKEN_TTL", "15m")
	t.Setenv("SHELF_TOKEN_ISSUER", "shelf-test")
	t.Setenv("SHELF_TOKEN_FORMAT", "paseto")
	t.Setenv("SHELF_TOKEN_CLOCK_SKEW", "5s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.TTL != 15*time.Minute || cfg.Issuer != "shelf-test" || cfg.Format != FormatPaseto || cfg.ClockSkew != 5*time.Second {
		t.Fatalf("unexpected config: %+v", cfg.LogValue())
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv(SecretEnvKey, strings.Repeat("k", 32))

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.TTL != 30*time.Minute || cfg.Format != FormatJWT || cfg.Issuer != DefaultIssuer {
		t.Fatalf("unexpected defaults: %+v", cfg.LogValue())
	}
}

func TestConfigLogValue_HidesSecret(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Secret = "super-secret-value-that-must-not-leak"

	var b strings.Builder
	log := slog.New(slog.NewTextHandler(&b, nil))
	log.Info("token.config", "cfg", cfg)

	if strings.Contains(b.String(), cfg.Secret) {
		t.Fatalf("secret leaked into log output: %s", b.String())
	}
	if !strings.Contains(b.String(), "secret_set=true") {
		t.Fatalf("expected secret_set flag: %s", b.String())
	}
}
