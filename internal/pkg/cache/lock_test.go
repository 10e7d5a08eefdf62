package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisConfig() config.Cache {
	host := os.Getenv("CACHE_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("CACHE_PORT")
	if port == "" {
		port = "6379"
	}
	return config.Cache{Host: host, Port: port, Password: os.Getenv("CACHE_PASSWORD")}
}

func TestLockerExclusive(t *testing.T) {
	rdb := NewClient(testRedisConfig())
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	key := "test:lock:" + time.Now().Format("150405.000000000")
	defer rdb.Del(context.Background(), key)

	locker := NewLocker(rdb)
	release, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()

	release2, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	release2()
}

func TestLockerReleaseKeepsForeignLock(t *testing.T) {
	rdb := NewClient(testRedisConfig())
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	key := "test:lock:foreign:" + time.Now().Format("150405.000000000")
	defer rdb.Del(context.Background(), key)

	locker := NewLocker(rdb)
	release, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	// simulate expiry followed by another holder
	require.NoError(t, rdb.Set(ctx, key, "someone-else", time.Minute).Err())
	release()

	val, err := rdb.Get(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}
