package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/credit-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGuard(t *testing.T, cfg Config) (*Guard, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGuard(redis.Wrap(client, ""), cfg), mr
}

func TestGuard_AcquireAndRelease(t *testing.T) {
	g, mr := setupGuard(t, DefaultConfig())
	ctx := context.Background()

	lease, err := g.Acquire(ctx, "order_1")
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.True(t, mr.Exists("settle:lock:order_1"))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("settle:lock:order_1"))

	// second release is a no-op
	require.NoError(t, lease.Release(ctx))
}

func TestGuard_Contention(t *testing.T) {
	g, _ := setupGuard(t, DefaultConfig())
	ctx := context.Background()

	lease, err := g.Acquire(ctx, "order_1")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "order_1")
	assert.ErrorIs(t, err, ErrLeaseHeld)

	other, err := g.Acquire(ctx, "order_2")
	require.NoError(t, err, "leases are per order")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))

	again, err := g.Acquire(ctx, "order_1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestGuard_LeaseExpires(t *testing.T) {
	g, mr := setupGuard(t, Config{LockTTL: 5 * time.Second})
	ctx := context.Background()

	stale, err := g.Acquire(ctx, "order_1")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	fresh, err := g.Acquire(ctx, "order_1")
	require.NoError(t, err, "expired lease must not block")

	// releasing the stale lease must not drop the fresh holder
	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("settle:lock:order_1"))

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists("settle:lock:order_1"))
}

func TestGuard_RedisDown(t *testing.T) {
	g, mr := setupGuard(t, DefaultConfig())
	mr.Close()

	_, err := g.Acquire(context.Background(), "order_1")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
}

func TestGuard_ConcurrentAcquire(t *testing.T) {
	g, _ := setupGuard(t, DefaultConfig())
	ctx := context.Background()

	const workers = 20
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		held    atomic.Int32
	)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := g.Acquire(ctx, "order_race")
			switch err {
			case nil:
				winners.Add(1)
			case ErrLeaseHeld:
				held.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(workers-1), held.Load())
}

func TestNewGuard_Defaults(t *testing.T) {
	g := NewGuard(nil, Config{})
	assert.Equal(t, 30*time.Second, g.config.LockTTL)
	assert.Equal(t, "settle:lock:", g.config.LockKeyPrefix)
}
