package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names the scheme used for new digests. Verification accepts every
// supported scheme regardless of this setting.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"MEMORY_KIB"`
	Iterations  uint32 `env:"ITERATIONS"`
	Parallelism uint8  `env:"PARALLELISM"`
	SaltLength  uint32 `env:"SALT_LEN"`
	KeyLength   uint32 `env:"KEY_LEN"`
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int `env:"MIN_LEN"`
	MaxLength int `env:"MAX_LEN"`
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool `env:"REJECT_VERY_WEAK"`
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm  Algorithm      `env:"SHELF_PASSWORD_ALGORITHM"`
	Params     Argon2idParams `envPrefix:"SHELF_ARGON2_"`
	BcryptCost int            `env:"SHELF_BCRYPT_COST"`
	Policy     Policy         `envPrefix:"SHELF_PASSWORD_"`
}

// DefaultConfig returns the baseline used when no env overrides are present.
func DefaultConfig() Config {
	// Parallelism follows the CPU count, clamped to [1..4] so container limits stay predictable.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm: AlgorithmArgon2id,
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: 12,
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - SHELF_PASSWORD_ALGORITHM (argon2id|bcrypt)
//   - SHELF_PASSWORD_MIN_LEN, SHELF_PASSWORD_MAX_LEN, SHELF_PASSWORD_REJECT_VERY_WEAK
//   - SHELF_ARGON2_MEMORY_KIB, SHELF_ARGON2_ITERATIONS, SHELF_ARGON2_PARALLELISM
//   - SHELF_ARGON2_SALT_LEN, SHELF_ARGON2_KEY_LEN
//   - SHELF_BCRYPT_COST
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("password env: %w", err)
	}
	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) check() error {
	switch c.Algorithm {
	case AlgorithmArgon2id, AlgorithmBcrypt:
	default:
		return fmt.Errorf("SHELF_PASSWORD_ALGORITHM: unsupported %q", c.Algorithm)
	}

	checks := []struct {
		name     string
		v        int64
		min, max int64
	}{
		{"SHELF_PASSWORD_MIN_LEN", int64(c.Policy.MinLength), 1, 1024},
		{"SHELF_PASSWORD_MAX_LEN", int64(c.Policy.MaxLength), 1, 4096},
		{"SHELF_ARGON2_MEMORY_KIB", int64(c.Params.MemoryKiB), 8 * 1024, 1024 * 1024}, // 8 MiB .. 1 GiB
		{"SHELF_ARGON2_ITERATIONS", int64(c.Params.Iterations), 1, 20},
		{"SHELF_ARGON2_PARALLELISM", int64(c.Params.Parallelism), 1, 64},
		{"SHELF_ARGON2_SALT_LEN", int64(c.Params.SaltLength), 8, 64},
		{"SHELF_ARGON2_KEY_LEN", int64(c.Params.KeyLength), 16, 64},
		{"SHELF_BCRYPT_COST", int64(c.BcryptCost), int64(bcrypt.MinCost), int64(bcrypt.MaxCost)},
	}
	for _, ck := range checks {
		if ck.v < ck.min || ck.v > ck.max {
			return fmt.Errorf("%s: out of range [%d..%d]", ck.name, ck.min, ck.max)
		}
	}

	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
