// SPDX-License-Identifier: MIT

package testlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKey = "chandir:testlock"

// releaseScript deletes the lock only when the stored holder matches, so a
// slow caller cannot release a lock that has expired and been re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is the multi-instance implementation backed by a single Redis
// key with SET NX and a TTL. All chandir instances sharing the Redis see one
// authoritative lock.
type RedisLock struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration for the lock.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// NewRedisLock connects to Redis and verifies the connection.
func NewRedisLock(cfg RedisConfig, ttl time.Duration) (*RedisLock, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("testlock: redis connection failed: %w", err)
	}

	return &RedisLock{client: client, ttl: ttl}, nil
}

// NewRedisLockWithClient wraps an existing client, primarily for tests.
func NewRedisLockWithClient(client *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLock{client: client, ttl: ttl}
}

// TryAcquire implements Lock via SET NX PX.
func (l *RedisLock) TryAcquire(ctx context.Context, holder string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey, holder, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("testlock: redis setnx failed: %w", err)
	}
	return ok, nil
}

// Release implements Lock with a holder-guarded delete.
func (l *RedisLock) Release(ctx context.Context, holder string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{lockKey}, holder).Int()
	if err != nil {
		return fmt.Errorf("testlock: redis release failed: %w", err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Status implements Lock.
func (l *RedisLock) Status(ctx context.Context) (Status, error) {
	holder, err := l.client.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("testlock: redis get failed: %w", err)
	}
	return Status{Locked: true, Holder: holder}, nil
}

// Close closes the underlying Redis connection.
func (l *RedisLock) Close() error {
	return l.client.Close()
}
