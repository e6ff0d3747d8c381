package blingwebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/blingbridge/pkg/redis"
)

type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports true when the delivery was already seen.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, deliveryKey string) (bool, error) {
	if deliveryKey == "" {
		return false, errors.New("delivery key is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryKey)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *IdempotencyGuard) Delete(ctx context.Context, deliveryKey string) error {
	if deliveryKey == "" {
		return errors.New("delivery key is required")
	}
	key := g.store.IdempotencyKey(g.scope, deliveryKey)
	return g.store.Del(ctx, key)
}

// DeliveryKey prefers the provider event id and falls back to the body hash.
func DeliveryKey(ev Event, body []byte) string {
	if ev.ID != "" {
		return "event:" + ev.ID
	}
	sum := sha256.Sum256(body)
	return "body:" + hex.EncodeToString(sum[:])
}
