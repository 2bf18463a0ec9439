package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"shelf/cmd/identity"
	"shelf/cmd/internal/apperr"
	"shelf/cmd/security/password"
	"shelf/cmd/security/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func testTokens(t *testing.T) *token.Service {
	t.Helper()
	cfg := token.DefaultConfig()
	cfg.Secret = strings.Repeat("k", token.MinSecretBytes)
	svc, err := token.NewService(cfg)
	require.NoError(t, err)
	return svc
}

func newTestService(t *testing.T) (*Service, *token.Service, identity.Store) {
	t.Helper()
	users := identity.NewMemoryStore()
	tokens := testTokens(t)
	svc, err := NewService(users, testHasher(), tokens, nil)
	require.NoError(t, err)
	return svc, tokens, users
}

func TestRegisterThenLogin(t *testing.T) {
	svc, tokens, users := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "Reader", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "bearer", reg.TokenType)

	sub, err := tokens.Verify(reg.AccessToken, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "reader", sub)

	u, err := users.UserByUsername(ctx, "reader")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", u.PasswordHash)
	assert.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))

	login, err := svc.Login(ctx, "READER", "correct horse battery")
	require.NoError(t, err)
	sub, err = tokens.Verify(login.AccessToken, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "reader", sub)
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "writer", "s3cret-enough")
	require.NoError(t, err)

	for _, tc := range []struct{ user, pass string }{
		{"writer", "wrong-password"},
		{"nobody", "s3cret-enough"},
		{"writer", ""},
	} {
		_, err := svc.Login(ctx, tc.user, tc.pass)
		require.Error(t, err)
		ae := apperr.From(err)
		assert.Equal(t, apperr.KindAuthentication, ae.Kind)
		assert.Equal(t, 401, ae.Status())
		assert.Equal(t, MsgBadCredentials, ae.Message)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup", "first-password")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "DUP", "second-password")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, "User conflict: Username already registered", apperr.From(err).Message)

	// The original credentials still work.
	_, err = svc.Login(ctx, "dup", "first-password")
	assert.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ok_name", "short")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "password is too short", apperr.From(err).Message)

	_, err = svc.Register(ctx, "x", "long-enough-password")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// precheckBlindStore hides existing users from the pre-check so the store
// constraint has to catch the duplicate.
type precheckBlindStore struct {
	identity.Store
}

func (precheckBlindStore) UserByUsername(context.Context, string) (identity.User, error) {
	return identity.User{}, apperr.NotFound("User", "any")
}

func TestRegister_ConstraintIsAuthoritative(t *testing.T) {
	mem := identity.NewMemoryStore()
	svc, err := NewService(precheckBlindStore{Store: mem}, testHasher(), testTokens(t), nil)
	require.NoError(t, err)
	ctx := context.Background()

	const n = 6
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, confl int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(ctx, "racer", "racing-password")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.IsConflict(err):
				confl++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, confl)
}
