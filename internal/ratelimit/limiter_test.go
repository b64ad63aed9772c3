package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestAcquireRespectsLocalBucket(t *testing.T) {
	l := New(1000, 5)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
}

func TestAcquireReturnsContextErrorWhenCancelled(t *testing.T) {
	l := New(0.001, 1)
	// Drain the single burst token so the next Acquire has to wait on the
	// local bucket, which the cancelled context should cut short.
	_ = l.Acquire(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Acquire(ctx); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}

func TestAcquireWithoutRedisNeverBlocksOnDistributedCeiling(t *testing.T) {
	l := New(1000, 10, WithDistributedCeiling(nil, "job-1", 5, time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 10; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
}

func TestAcquireEnforcesDistributedCeilingAcrossCallers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := New(1000, 100, WithDistributedCeiling(client, "job-1", 3, 50*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(ctx))
	}

	// The 4th call in the same window exceeds the ceiling and must wait out
	// the window before returning.
	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireDegradesToLocalOnlyWhenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	l := New(1000, 10, WithDistributedCeiling(client, "job-1", 1, time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
}
