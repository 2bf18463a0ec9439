package authapi

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when SHELF_TEST_REDIS_URL points at a disposable Redis.
func TestRedisThrottle(t *testing.T) {
	raw := strings.TrimSpace(os.Getenv("SHELF_TEST_REDIS_URL"))
	if raw == "" {
		t.Skip("integration test skipped: SHELF_TEST_REDIS_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := ConnectRedis(ctx, raw)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	th := NewRedisThrottle(client, Config{LoginIPMax: 3, LoginUserMax: 2, LoginWindow: time.Minute})
	keys := LoginKeys{IP: net.ParseIP("198.51.100.7"), Username: "it-user-" + time.Now().Format("150405.000000")}
	t.Cleanup(func() {
		_ = client.Del(context.Background(), userKey(keys.Username), throttleKeyPrefix+"ip:"+keys.IP.String()).Err()
	})

	blocked, _, err := th.Blocked(ctx, keys)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, th.Fail(ctx, keys))
	require.NoError(t, th.Fail(ctx, keys))

	blocked, retry, err := th.Blocked(ctx, keys)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)

	require.NoError(t, th.Succeed(ctx, keys))
	blocked, _, err = th.Blocked(ctx, keys)
	require.NoError(t, err)
	assert.False(t, blocked, "ip counter (2 of 3) must not block after the user counter resets")
}
