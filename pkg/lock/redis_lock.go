// Package lock provides an optional distributed mutex over a metadata
// directory for deployments where more than one CI runner can touch the
// same workspace concurrently, instead of the default one-job-owns-the-
// directory model.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript unlocks key only if it still holds the token this holder
// set, so a holder whose lease already expired can never release a lock
// some other holder has since acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// RedisLock is a Redis-backed mutex keyed by a directory path, held for a
// bounded lease so a crashed holder doesn't wedge the directory forever.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock returns a lock over resource, backed by the Redis instance
// at addr. ttl bounds how long a single held lock survives without being
// released, in case the holder crashes mid-commit.
func NewRedisLock(addr, password string, db int, resource string, ttl time.Duration) *RedisLock {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &RedisLock{
		client: client,
		key:    fmt.Sprintf("reposign:lock:%s", resource),
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire blocks, retrying every pollInterval, until the lock is held or
// ctx is done.
func (l *RedisLock) Acquire(ctx context.Context, pollInterval time.Duration) error {
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock: acquire %q: %w", l.key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock: acquire %q: %w", l.key, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Release drops the lock if this holder still owns it. It is a no-op,
// not an error, if the lease already expired and another holder took it.
func (l *RedisLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("lock: release %q: %w", l.key, err)
	}
	return l.client.Close()
}
