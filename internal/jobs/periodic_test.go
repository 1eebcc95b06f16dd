package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPeriodicRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("test", func(context.Context) { runs.Add(1) }, zap.NewNop().Sugar())

	started, err := p.Start(time.Hour)
	require.NoError(t, err)
	require.True(t, started)
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	assert.True(t, p.Running())
	assert.Equal(t, time.Hour, p.Interval())
	assert.False(t, p.NextRun().IsZero())

	// second start is a no-op
	started, err = p.Start(time.Minute)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, time.Hour, p.Interval())

	require.True(t, p.Stop())
	assert.False(t, p.Running())
	assert.Zero(t, p.Interval())
	assert.False(t, p.Stop())
}

func TestPeriodicTicks(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("ticker", func(context.Context) { runs.Add(1) }, zap.NewNop().Sugar())

	_, err := p.Start(time.Millisecond) // raised to one second
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	after := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestPeriodicShutdownWaitsForRun(t *testing.T) {
	begun := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	p := NewPeriodic("slow", func(context.Context) {
		close(begun)
		<-release
		finished.Store(true)
	}, zap.NewNop().Sugar())
	_, err := p.Start(time.Hour)
	require.NoError(t, err)
	<-begun

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}

func TestPeriodicBaseContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "v")

	got := make(chan any, 1)
	p := NewPeriodic("ctx", func(ctx context.Context) { got <- ctx.Value(key{}) }, zap.NewNop().Sugar(), WithBaseContext(base))
	_, err := p.Start(time.Hour)
	require.NoError(t, err)
	defer p.Stop()

	select {
	case v := <-got:
		assert.Equal(t, "v", v)
	case <-time.After(time.Second):
		t.Fatal("run not invoked")
	}
}

func TestPeriodicRejectsNonPositiveInterval(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("bad", func(context.Context) { runs.Add(1) }, zap.NewNop().Sugar())

	for _, d := range []time.Duration{0, -time.Second} {
		started, err := p.Start(d)
		assert.ErrorIs(t, err, ErrInvalidInterval)
		assert.False(t, started)
	}
	assert.False(t, p.Running())
	assert.Zero(t, runs.Load())
}

func TestPeriodicStopBeforeFirstRun(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("flap", func(context.Context) { runs.Add(1) }, zap.NewNop().Sugar())

	for i := 0; i < 20; i++ {
		_, err := p.Start(time.Hour)
		require.NoError(t, err)
		require.True(t, p.Stop())
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Running())

	settled := runs.Load()
	assert.LessOrEqual(t, settled, int32(20))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, runs.Load())
}

func TestImmediateSchedule(t *testing.T) {
	s := newImmediateSchedule(90 * time.Minute)
	now := time.Date(2025, 7, 1, 9, 0, 0, 500, time.UTC)

	assert.Equal(t, now, s.Next(now))
	assert.Equal(t, time.Date(2025, 7, 1, 10, 30, 0, 0, time.UTC), s.Next(now))
}
