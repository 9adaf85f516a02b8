package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/domain"
)

type syncerFunc func(ctx context.Context) (*domain.SyncStats, error)

func (f syncerFunc) Sync(ctx context.Context) (*domain.SyncStats, error) {
	return f(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	var runs atomic.Int32
	syncer := syncerFunc(func(ctx context.Context) (*domain.SyncStats, error) {
		runs.Add(1)
		return &domain.SyncStats{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := NewScheduler(syncer, 10*time.Millisecond, time.Second, discardLogger())

	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RunTimeoutBoundsEachRun(t *testing.T) {
	syncer := syncerFunc(func(ctx context.Context) (*domain.SyncStats, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	sched := NewScheduler(syncer, time.Hour, 20*time.Millisecond, discardLogger())

	start := time.Now()
	sched.RunOnce(context.Background())
	assert.Less(t, time.Since(start), time.Second)
}

func TestScheduler_SyncErrorDoesNotStopLoop(t *testing.T) {
	var runs atomic.Int32
	syncer := syncerFunc(func(ctx context.Context) (*domain.SyncStats, error) {
		runs.Add(1)
		return nil, errors.New("database unavailable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = NewScheduler(syncer, 10*time.Millisecond, time.Second, discardLogger()).Start(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestNewScheduler_DefaultRunTimeout(t *testing.T) {
	sched := NewScheduler(syncerFunc(nil), time.Minute, 0, discardLogger())
	assert.Equal(t, defaultRunTimeout, sched.runTimeout)
}
