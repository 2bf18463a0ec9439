package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shelf/cmd/security/password"
	"shelf/cmd/security/token"

	"github.com/urfave/cli/v2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// runCLI runs the app in-process with the given stdin and returns stdout.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newCLI()
	a.Reader = strings.NewReader(stdin)
	a.Writer = &out
	a.ErrWriter = &out
	a.ExitErrHandler = func(*cli.Context, error) {}
	err := a.Run(append([]string{"shelf"}, args...))
	return out.String(), err
}

func fastPasswordEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SHELF_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("SHELF_ARGON2_ITERATIONS", "1")
	t.Setenv("SHELF_ARGON2_PARALLELISM", "1")
}

func TestHashPassword(t *testing.T) {
	fastPasswordEnv(t)

	out, err := runCLI(t, "correct horse battery\n", "hash-password")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	digest := strings.TrimSpace(out)
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("digest = %q", digest)
	}

	pc, err := password.FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if !pc.Matches(digest, "correct horse battery") {
		t.Fatalf("digest does not verify")
	}
}

func TestHashPassword_PolicyViolation(t *testing.T) {
	fastPasswordEnv(t)

	out, err := runCLI(t, "short\n", "hash-password")
	if err == nil {
		t.Fatalf("expected policy error, got output %q", out)
	}
	if ec, ok := err.(cli.ExitCoder); !ok || ec.ExitCode() != 2 {
		t.Fatalf("err = %v, want exit code 2", err)
	}
}

func TestIssueToken(t *testing.T) {
	t.Setenv(token.SecretEnvKey, testSecret)

	out, err := runCLI(t, "", "issue-token", "--subject", "alice", "--json")
	if err != nil {
		t.Fatalf("issue-token: %v", err)
	}
	var got issuedToken
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.TokenType != "bearer" || got.ExpiresAt.Before(time.Now()) {
		t.Fatalf("token = %+v", got)
	}

	tc, err := token.LoadConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	svc, err := token.NewService(tc)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := svc.Verify(got.AccessToken, time.Now())
	if err != nil || sub != "alice" {
		t.Fatalf("Verify = %q, %v", sub, err)
	}
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	t.Setenv(token.SecretEnvKey, "")

	if _, err := runCLI(t, "", "issue-token", "--subject", "alice"); err == nil {
		t.Fatal("expected error without a secret")
	}
}

func TestMigrate_SQLite(t *testing.T) {
	t.Setenv("SHELF_SQLITE_PATH", filepath.Join(t.TempDir(), "shelf.db"))
	t.Setenv("SHELF_LOG_LEVEL", "error")

	out, err := runCLI(t, "", "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "applied") {
		t.Fatalf("first run output = %q", out)
	}

	out, err = runCLI(t, "", "migrate")
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if !strings.Contains(out, "schema up to date") {
		t.Fatalf("second run output = %q", out)
	}
}

func TestMigrate_NoDatabase(t *testing.T) {
	t.Setenv("SHELF_LOG_LEVEL", "error")

	if _, err := runCLI(t, "", "migrate"); err == nil {
		t.Fatal("expected error without a database")
	}
}
