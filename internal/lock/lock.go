// Package lock provides short-lived named locks so that periodic jobs run on
// a single replica at a time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidLock = errors.New("lock key is empty or ttl is not positive")

type Locker interface {
	// TryLock acquires key for at most ttl. ok is false when someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(releaseScript),
		prefix: prefix,
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" || ttl <= 0 {
		return "", false, ErrInvalidLock
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}

// Local is the single-process fallback used when no Redis is configured.
type Local struct {
	mu   sync.Mutex
	now  func() time.Time
	held map[string]localEntry
}

type localEntry struct {
	token   string
	expires time.Time
}

func NewLocal() *Local {
	return &Local{now: time.Now, held: make(map[string]localEntry)}
}

func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" || ttl <= 0 {
		return "", false, ErrInvalidLock
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *Local) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.held[key]; ok && e.token == token {
		delete(l.held, key)
	}
	return nil
}
