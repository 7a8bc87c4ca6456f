package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStartRunsImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New(time.Hour, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, zaptest.NewLogger(t))

	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run on start")
	}
	require.NoError(t, s.Stop(context.Background()))
}

func TestTryRunSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var skips atomic.Int32

	s := New(time.Hour, func(context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}, zaptest.NewLogger(t))
	s.OnSkip = func() { skips.Add(1) }

	s.Start(context.Background())
	<-started
	assert.True(t, s.Running())

	assert.False(t, s.TryRun())
	assert.False(t, s.TryRun())
	assert.Equal(t, int32(2), skips.Load())

	close(release)
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Running())
}

func TestTryRunAfterCycleFinishes(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zaptest.NewLogger(t))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 && !s.Running() }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, s.TryRun())
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStopCancelsStuckCycle(t *testing.T) {
	started := make(chan struct{}, 1)
	s := New(time.Hour, func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}, zaptest.NewLogger(t))

	s.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.Running())
	assert.False(t, s.TryRun(), "no cycles after stop")
}

func TestPanickingCycleReleasesGuard(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, func(context.Context) error {
		runs.Add(1)
		panic("boom")
	}, zaptest.NewLogger(t))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 && !s.Running() }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.TryRun())
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStopBeforeStart(t *testing.T) {
	s := New(time.Minute, func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, s.Stop(context.Background()), ErrNotStarted)
	assert.False(t, s.TryRun())
}

func TestTryRunConcurrentWithStartAndStop(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.TryRun()
			}
		}()
	}
	s.Start(context.Background())
	wg.Wait()

	stopDone := make(chan error, 1)
	go func() { stopDone <- s.Stop(context.Background()) }()
	for i := 0; i < 100; i++ {
		s.TryRun()
	}
	require.NoError(t, <-stopDone)

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
	assert.False(t, s.TryRun(), "no cycles after stop")
	assert.False(t, s.Running())
}

func TestStartAfterStopIsNoop(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zaptest.NewLogger(t))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() == 1 && !s.Running() }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	s.Start(context.Background())
	assert.False(t, s.TryRun())
	assert.Equal(t, int32(1), runs.Load())
}
