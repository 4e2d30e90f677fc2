package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedis(client, slog.New(slog.NewTextHandler(io.Discard, nil)), ttl)
	l.retry = 5 * time.Millisecond
	return l, mr
}

func TestRedisAcquireRelease(t *testing.T) {
	l, mr := newTestRedis(t, time.Minute)

	release, err := l.Acquire(context.Background(), "user:7")
	require.NoError(t, err)
	assert.True(t, mr.Exists("botforge:lock:user:7"))
	assert.Equal(t, time.Minute, mr.TTL("botforge:lock:user:7"))

	release()
	assert.False(t, mr.Exists("botforge:lock:user:7"))
}

func TestRedisBlocksSecondHolder(t *testing.T) {
	l, _ := newTestRedis(t, time.Minute)

	release, err := l.Acquire(context.Background(), "user:7")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "user:7")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	acquired := make(chan struct{})
	go func() {
		second, err := l.Acquire(context.Background(), "user:7")
		if err == nil {
			second()
		}
		close(acquired)
	}()

	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestRedisReleaseKeepsForeignLease(t *testing.T) {
	l, mr := newTestRedis(t, time.Second)

	stale, err := l.Acquire(context.Background(), "user:9")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("botforge:lock:user:9"))

	fresh, err := l.Acquire(context.Background(), "user:9")
	require.NoError(t, err)
	token, err := mr.Get("botforge:lock:user:9")
	require.NoError(t, err)

	stale()
	got, err := mr.Get("botforge:lock:user:9")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	fresh()
	assert.False(t, mr.Exists("botforge:lock:user:9"))
}

func TestRedisAcquireServerDown(t *testing.T) {
	l, mr := newTestRedis(t, time.Minute)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := l.Acquire(ctx, "user:1")
	require.Error(t, err)
}

func TestNewRedisFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := NewRedisFromURL(context.Background(), "redis://"+mr.Addr()+"/0", slog.Default(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = NewRedisFromURL(context.Background(), "://bad", slog.Default(), time.Minute)
	require.Error(t, err)
}
