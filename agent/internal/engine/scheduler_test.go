package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"mint-radar/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnceSkipsOverlappingRuns(t *testing.T) {
	e := &Engine{log: logger.NewNop()}
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32
	tk := &task{name: "slow", interval: time.Hour, fn: func(ctx context.Context, _ *logger.Logger) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}}

	done := make(chan bool)
	go func() { done <- e.runOnce(context.Background(), tk) }()
	<-started

	assert.False(t, e.runOnce(context.Background(), tk), "second run is skipped while the first is in flight")
	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunOnceRecoversPanics(t *testing.T) {
	e := &Engine{log: logger.NewNop()}
	tk := &task{name: "boom", fn: func(context.Context, *logger.Logger) error { panic("boom") }}

	assert.True(t, e.runOnce(context.Background(), tk))
	assert.False(t, tk.running.Load())
}

func TestRunTask(t *testing.T) {
	var runs atomic.Int32
	e := &Engine{log: logger.NewNop()}
	e.tasks = []*task{{name: TaskHeartbeat, interval: time.Hour, fn: func(context.Context, *logger.Logger) error {
		runs.Add(1)
		return nil
	}}}

	require.NoError(t, e.RunTask(context.Background(), TaskHeartbeat))
	assert.Equal(t, int32(1), runs.Load())
	assert.Error(t, e.RunTask(context.Background(), "nope"))
	assert.Equal(t, []string{TaskHeartbeat}, e.Tasks())
}

func TestRunStopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	e := &Engine{log: logger.NewNop()}
	e.tasks = []*task{
		{name: "tick", interval: 10 * time.Millisecond, fn: func(context.Context, *logger.Logger) error {
			runs.Add(1)
			return nil
		}},
		{name: "off", interval: 0},
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(stopped)
	}()
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
}
