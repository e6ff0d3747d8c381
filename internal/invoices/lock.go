package invoices

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/blingbridge/pkg/redis"
)

const defaultLockTTL = 5 * time.Minute

// Locker serializes invoice creation per order.
type Locker interface {
	// Acquire returns false when another caller holds the order.
	Acquire(ctx context.Context, orderID int64) (Lease, bool, error)
}

// Lease is an acquired order lock. It expires on its own after the lock TTL.
type Lease interface {
	Release(ctx context.Context) error
	// Remaining is the time left before the lock expires.
	Remaining() time.Duration
}

// lockStore defines the operations used by RedisLocker.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

// RedisLocker implements Locker using Redis SETNX + TTL.
type RedisLocker struct {
	store lockStore
	ttl   time.Duration
	now   func() time.Time
}

func NewRedisLocker(store lockStore, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{store: store, ttl: ttl, now: time.Now}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, orderID int64) (Lease, bool, error) {
	key := l.store.LockKey("invoice_order", strconv.FormatInt(orderID, 10))
	owner := uuid.NewString()
	acquiredAt := l.now()
	ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{store: l.store, key: key, owner: owner, expiresAt: acquiredAt.Add(l.ttl), now: l.now}, true, nil
}

type redisLease struct {
	store     lockStore
	key       string
	owner     string
	expiresAt time.Time
	now       func() time.Time
}

// Remaining is measured from before SETNX was sent, so it never overstates the TTL.
func (l *redisLease) Remaining() time.Duration {
	return l.expiresAt.Sub(l.now())
}

// Release frees the lock only if the owner value still matches.
func (l *redisLease) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.store.Get(ctx, l.key)
	if err != nil {
		if redis.IsNil(err) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}
