package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisScheduleLocker(client, 5*time.Second), mr
}

func TestWithScheduleLockRunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t)

	ran := false
	err := locker.WithScheduleLock(context.Background(), "2024-06-01", func(ctx context.Context) error {
		ran = true
		require.True(t, mr.Exists("lock:schedule:2024-06-01"))
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)

	require.False(t, mr.Exists("lock:schedule:2024-06-01"), "lock must be released")
}

func TestWithScheduleLockContention(t *testing.T) {
	locker, _ := newTestLocker(t)

	err := locker.WithScheduleLock(context.Background(), "2024-06-01", func(ctx context.Context) error {
		inner := locker.WithScheduleLock(ctx, "2024-06-01", func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		require.ErrorIs(t, inner, ErrLockNotAcquired)

		// A different day is a different lock.
		return locker.WithScheduleLock(ctx, "2024-06-02", func(context.Context) error { return nil })
	})
	require.NoError(t, err)
}

func TestWithScheduleLockReacquireAfterRelease(t *testing.T) {
	locker, _ := newTestLocker(t)

	for i := 0; i < 3; i++ {
		err := locker.WithScheduleLock(context.Background(), "2024-06-01", func(context.Context) error { return nil })
		require.NoError(t, err)
	}
}

func TestWithScheduleLockPropagatesError(t *testing.T) {
	locker, mr := newTestLocker(t)

	sentinel := context.DeadlineExceeded
	err := locker.WithScheduleLock(context.Background(), "2024-06-01", func(context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.False(t, mr.Exists("lock:schedule:2024-06-01"), "lock released on error too")
}
