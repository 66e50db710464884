package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := NewSweeper(s, "not a schedule")
	require.Error(t, err)
}

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.UnixMilli(5_000_000)}
	s, _ := newTestStore(t, WithClock(clock.Now))

	require.NoError(t, s.SetWithTTL(ctx, "a", 1, time.Second))
	require.NoError(t, s.Set(ctx, "b", 2))
	clock.Advance(time.Minute)

	sw, err := NewSweeper(s, "@every 1h")
	require.NoError(t, err)

	count, err := sw.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = sw.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSweeper_Scheduled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, database := newTestStore(t)
	require.NoError(t, s.SetWithTTL(ctx, "short", "v", time.Millisecond))
	require.NoError(t, s.Set(ctx, "long", "v"))

	sw, err := NewSweeper(s, "@every 1s")
	require.NoError(t, err)
	sw.Start(ctx)
	defer sw.Stop()

	require.Eventually(t, func() bool {
		var count int
		if err := database.QueryRow(`SELECT COUNT(*) FROM kv_store`).Scan(&count); err != nil {
			return false
		}
		return count == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSweeper_StopOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newTestStore(t)

	sw, err := NewSweeper(s, "@every 1h")
	require.NoError(t, err)
	sw.Start(ctx)
	cancel()

	select {
	case <-sw.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}

	// Stop after cancellation is a no-op
	sw.Stop()
}
