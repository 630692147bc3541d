package receivables

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-receivables/internal/shared"
)

// Locker serialises work per account. Lock blocks until the account is free or
// ctx is done, and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, accountID int64) (func(), error)
}

// LocalLocker is an in-process Locker keyed by account ID.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker constructs a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[int64]*lockSlot)}
}

// Lock implements Locker.
func (l *LocalLocker) Lock(ctx context.Context, accountID int64) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[accountID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[accountID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(accountID, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(accountID, slot)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(accountID int64, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, accountID)
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a Locker shared by every process pointed at the same Redis.
// The TTL bounds how long a crashed holder can block an account.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker constructs a RedisLocker.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, retry: 20 * time.Millisecond}
}

// Lock implements Locker.
func (l *RedisLocker) Lock(ctx context.Context, accountID int64) (func(), error) {
	key := shared.AccountLockKey(accountID)
	token := uuid.NewString()
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("receivables: acquire lock %s: %w", key, err)
		}
		if ok {
			return func() {
				// released with a fresh context so a cancelled request still frees the key
				_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
