package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDistributedLock_TryLockAndUnlock(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	first := NewDistributedLock(client, "k", "owner-1", time.Second)
	second := NewDistributedLock(client, "k", "owner-2", time.Second)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// 非持有者不能释放
	assert.ErrorIs(t, second.Unlock(ctx), ErrLockNotOwned)
	assert.True(t, mr.Exists("k"))

	require.NoError(t, first.Unlock(ctx))
	assert.False(t, mr.Exists("k"))

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedLock_LockGivesUpAfterRetries(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewDistributedLock(client, "k", "holder", time.Minute)
	require.NoError(t, holder.Lock(ctx, time.Millisecond, 1))

	waiter := NewDistributedLock(client, "k", "waiter", time.Minute)
	err := waiter.Lock(ctx, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
}

func TestDistributedLock_ExpiresWhenHolderDisappears(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	holder := NewDistributedLock(client, "k", "holder", time.Second)
	require.NoError(t, holder.Lock(ctx, time.Millisecond, 1))

	mr.FastForward(2 * time.Second)

	waiter := NewDistributedLock(client, "k", "waiter", time.Second)
	require.NoError(t, waiter.Lock(ctx, time.Millisecond, 1))
	assert.ErrorIs(t, holder.Unlock(ctx), ErrLockNotOwned)
}

func TestRedisLocker_SerializesSameKey(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, 10*time.Second, 2*time.Millisecond, 5000)

	assertMutualExclusion(t, locker)
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()

	assertMutualExclusion(t, locker)
	assert.Equal(t, 0, locker.size())
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	a, err := locker.Obtain(ctx, AccountLockKey("1000000000"))
	require.NoError(t, err)

	b, err := locker.Obtain(ctx, AccountLockKey("1000000001"))
	require.NoError(t, err)

	require.NoError(t, a.Unlock(ctx))
	require.NoError(t, b.Unlock(ctx))
	assert.ErrorIs(t, b.Unlock(ctx), ErrLockNotOwned)
}

func TestLocalLocker_ObtainHonoursContext(t *testing.T) {
	locker := NewLocalLocker()

	held, err := locker.Obtain(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Obtain(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Unlock(context.Background()))
	assert.Equal(t, 0, locker.size())
}

func TestAccountLockKey(t *testing.T) {
	assert.Equal(t, "account:lock:1234567890", AccountLockKey("1234567890"))
}

func assertMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		counter int
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := locker.Obtain(ctx, "account:lock:1000000000")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			counter++
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, l.Unlock(ctx))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxSeen)
	assert.Equal(t, 20, counter)
}
