package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRetryInterval = 50 * time.Millisecond
	releaseTimeout       = 5 * time.Second
)

// unlockScript deletes the key only while it still carries our token, so an
// expired lease taken over by another process is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointing at the same server.
// The lease TTL bounds how long a crashed holder can block a key.
type Redis struct {
	client *redis.Client
	log    *slog.Logger
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedis(client *redis.Client, log *slog.Logger, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		log:    log,
		prefix: "botforge:lock:",
		ttl:    ttl,
		retry:  defaultRetryInterval,
	}
}

// NewRedisFromURL parses a redis:// URL and verifies the server responds.
func NewRedisFromURL(ctx context.Context, url string, log *slog.Logger, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, log, ttl), nil
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(ctx, key, redisKey, token) })
	}, nil
}

func (r *Redis) release(ctx context.Context, key, redisKey, token string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := unlockScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
		r.log.Error("release lock", "key", key, "err", err)
	}
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
