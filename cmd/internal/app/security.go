package app

import (
	"fmt"

	"shelf/cmd/security/password"
	"shelf/cmd/security/token"
)

// Security holds the crypto settings. They come from the environment only,
// never from the config file, so secrets stay out of checked-in YAML.
type Security struct {
	Token    token.Config
	Password password.Config
}

// LoadSecurityConfig reads SHELF_TOKEN_*, SHELF_PASSWORD_*, SHELF_ARGON2_*
// and SHELF_BCRYPT_COST.
func LoadSecurityConfig() (Security, error) {
	tc, err := token.LoadConfigFromEnv()
	if err != nil {
		return Security{}, fmt.Errorf("security policy: %w", err)
	}
	pc, err := password.FromEnv()
	if err != nil {
		return Security{}, fmt.Errorf("security policy: %w", err)
	}
	return Security{Token: tc, Password: pc}, nil
}

// ValidateSecurityConfig enforces the startup policy. Fail-fast: a server
// without a usable signing secret must not come up.
func ValidateSecurityConfig(s Security) error {
	if err := s.Token.Validate(); err != nil {
		return fmt.Errorf("security policy: %w", err)
	}
	// A policy that cannot accept its own minimum is a misconfiguration.
	if s.Password.Policy.MinLength <= 0 || s.Password.Policy.MaxLength < s.Password.Policy.MinLength {
		return fmt.Errorf("security policy: password length bounds [%d, %d] are invalid",
			s.Password.Policy.MinLength, s.Password.Policy.MaxLength)
	}
	return nil
}
