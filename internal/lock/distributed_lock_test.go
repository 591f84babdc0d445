package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestDistributedLock_ExclusiveUntilReleased(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	first := NewDistributedLock(client, "sweeper:lock", time.Minute)
	second := NewDistributedLock(client, "sweeper:lock", time.Minute)

	require.NoError(t, first.Acquire(ctx))
	assert.True(t, errors.Is(second.Acquire(ctx), ErrLockNotAcquired))

	require.NoError(t, first.Release(ctx))
	assert.NoError(t, second.Acquire(ctx))
}

func TestDistributedLock_ReleaseByNonOwner(t *testing.T) {
	client, _ := newClient(t)
	ctx := context.Background()

	owner := NewDistributedLock(client, "k", time.Minute)
	other := NewDistributedLock(client, "k", time.Minute)

	require.NoError(t, owner.Acquire(ctx))
	assert.True(t, errors.Is(other.Release(ctx), ErrLockNotHeld))

	// The owner's lease must survive the foreign release attempt.
	assert.True(t, errors.Is(other.Acquire(ctx), ErrLockNotAcquired))
}

func TestDistributedLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := newClient(t)
	ctx := context.Background()

	first := NewDistributedLock(client, "k", time.Second)
	second := NewDistributedLock(client, "k", time.Second)

	require.NoError(t, first.Acquire(ctx))
	mr.FastForward(2 * time.Second)

	assert.NoError(t, second.Acquire(ctx))
	assert.True(t, errors.Is(first.Release(ctx), ErrLockNotHeld))
}

func TestDistributedLock_RedisDown(t *testing.T) {
	client, mr := newClient(t)
	mr.Close()

	l := NewDistributedLock(client, "k", time.Second)
	err := l.Acquire(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrLockNotAcquired))
}
