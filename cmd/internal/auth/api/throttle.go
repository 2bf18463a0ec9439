package authapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginKeys identifies the counters touched by one login attempt.
type LoginKeys struct {
	IP       net.IP
	Username string
}

// Throttle counts failed logins per client IP and per username over a fixed
// window. State lives outside the process.
type Throttle interface {
	// Blocked reports whether either counter is at its limit and how long until it resets.
	Blocked(ctx context.Context, k LoginKeys) (bool, time.Duration, error)
	Fail(ctx context.Context, k LoginKeys) error
	// Succeed clears the username counter.
	Succeed(ctx context.Context, k LoginKeys) error
}

// NoopThrottle never blocks. It is used when no Redis is configured.
type NoopThrottle struct{}

func (NoopThrottle) Blocked(context.Context, LoginKeys) (bool, time.Duration, error) {
	return false, 0, nil
}
func (NoopThrottle) Fail(context.Context, LoginKeys) error    { return nil }
func (NoopThrottle) Succeed(context.Context, LoginKeys) error { return nil }

const throttleKeyPrefix = "shelf:login:fail:"

// RedisThrottle implements Throttle with INCR + EXPIRE counters.
type RedisThrottle struct {
	client  redis.Cmdable
	ipMax   int
	userMax int
	window  time.Duration
}

// NewRedisThrottle builds a throttle over client using cfg's limits.
func NewRedisThrottle(client redis.Cmdable, cfg Config) *RedisThrottle {
	cfg = cfg.normalized()
	return &RedisThrottle{
		client:  client,
		ipMax:   cfg.LoginIPMax,
		userMax: cfg.LoginUserMax,
		window:  cfg.LoginWindow,
	}
}

// ConnectRedis initializes a client from a redis:// URL or host:port.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type counter struct {
	key string
	max int
}

func (t *RedisThrottle) counters(k LoginKeys) []counter {
	var out []counter
	if k.IP != nil && t.ipMax > 0 {
		out = append(out, counter{key: throttleKeyPrefix + "ip:" + k.IP.String(), max: t.ipMax})
	}
	if u := strings.TrimSpace(k.Username); u != "" && t.userMax > 0 {
		out = append(out, counter{key: userKey(u), max: t.userMax})
	}
	return out
}

func userKey(username string) string {
	return throttleKeyPrefix + "user:" + strings.ToLower(username)
}

func (t *RedisThrottle) Blocked(ctx context.Context, k LoginKeys) (bool, time.Duration, error) {
	for _, c := range t.counters(k) {
		n, err := t.client.Get(ctx, c.key).Int()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return false, 0, err
		}
		if n < c.max {
			continue
		}
		ttl, err := t.client.TTL(ctx, c.key).Result()
		if err != nil {
			return false, 0, err
		}
		if ttl <= 0 {
			ttl = t.window
		}
		return true, ttl, nil
	}
	return false, 0, nil
}

func (t *RedisThrottle) Fail(ctx context.Context, k LoginKeys) error {
	cs := t.counters(k)
	if len(cs) == 0 {
		return nil
	}
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, c := range cs {
			p.Incr(ctx, c.key)
			// The window starts at the first failure.
			p.ExpireNX(ctx, c.key, t.window)
		}
		return nil
	})
	return err
}

func (t *RedisThrottle) Succeed(ctx context.Context, k LoginKeys) error {
	u := strings.TrimSpace(k.Username)
	if u == "" {
		return nil
	}
	return t.client.Del(ctx, userKey(u)).Err()
}
