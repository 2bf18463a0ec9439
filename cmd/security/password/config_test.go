package password

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy.MinLength != def.Policy.MinLength {
		t.Fatalf("min length mismatch")
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
	if cfg.Algorithm != AlgorithmArgon2id {
		t.Fatalf("algorithm mismatch: %q", cfg.Algorithm)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("SHELF_PASSWORD_ALGORITHM", "bcrypt")
	t.Setenv("SHELF_PASSWORD_MIN_LEN", "10")
	t.Setenv("SHELF_PASSWORD_MAX_LEN", "200")
	t.Setenv("SHELF_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("SHELF_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("SHELF_ARGON2_ITERATIONS", "4")
	t.Setenv("SHELF_ARGON2_PARALLELISM", "2")
	t.Setenv("SHELF_ARGON2_SALT_LEN", "24")
	t.Setenv("SHELF_ARGON2_KEY_LEN", "32")
	t.Setenv("SHELF_BCRYPT_COST", "10")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Algorithm != AlgorithmBcrypt || cfg.BcryptCost != 10 {
		t.Fatalf("algorithm override failed: %+v", cfg)
	}
	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"min_gt_max":  {"SHELF_PASSWORD_MIN_LEN", "300"},
		"algorithm":   {"SHELF_PASSWORD_ALGORITHM", "md5"},
		"memory_low":  {"SHELF_ARGON2_MEMORY_KIB", "16"},
		"bcrypt_cost": {"SHELF_BCRYPT_COST", "99"},
		"not_number":  {"SHELF_ARGON2_ITERATIONS", "many"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
