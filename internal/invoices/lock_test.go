package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLockerIsExclusivePerOrder(t *testing.T) {
	store := newMemoryLockStore()
	locker, err := NewRedisLocker(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := locker.Acquire(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	_, ok, err = locker.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseDoesNotReleaseForeignOwner(t *testing.T) {
	store := newMemoryLockStore()
	locker, err := NewRedisLocker(store, 0)
	require.NoError(t, err)
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)

	store.values["bb:lock:invoice_order:3"] = "new-owner"
	require.NoError(t, lease.Release(ctx))
	assert.Equal(t, "new-owner", store.values["bb:lock:invoice_order:3"])

	_, err = NewRedisLocker(nil, time.Minute)
	assert.Error(t, err)
}

func TestLeaseRemainingCountsFromAcquire(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)}
	locker, err := NewRedisLocker(newMemoryLockStore(), 0)
	require.NoError(t, err)
	locker.now = clock.Now

	lease, ok, err := locker.Acquire(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, defaultLockTTL, lease.Remaining())

	clock.Advance(4 * time.Minute)
	assert.Equal(t, time.Minute, lease.Remaining())

	clock.Advance(2 * time.Minute)
	assert.Negative(t, int64(lease.Remaining()))
}
