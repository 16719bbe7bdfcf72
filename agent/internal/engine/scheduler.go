package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mint-radar/agent/internal/metrics"
	"mint-radar/shared/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TaskIngest    = "ingest"
	TaskDiscovery = "discovery"
	TaskRefresh   = "refresh"
	TaskSocial    = "social"
	TaskHeartbeat = "heartbeat"
)

type taskFunc func(ctx context.Context, log *logger.Logger) error

type task struct {
	name     string
	interval time.Duration
	fn       taskFunc
	running  atomic.Bool
}

// Run starts every task on its own ticker and blocks until ctx is cancelled and
// all in-flight runs have returned. Each task runs once immediately.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, t := range e.tasks {
		if t.interval <= 0 {
			e.log.Warn("Task disabled, no interval", zap.String("task", t.name))
			continue
		}
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()
			e.loop(ctx, t, &wg)
		}(t)
	}
	e.log.Info("Engine started", zap.Int("tasks", len(e.tasks)))
	<-ctx.Done()
	wg.Wait()
	e.log.Info("Engine stopped")
}

func (e *Engine) loop(ctx context.Context, t *task, wg *sync.WaitGroup) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runOnce(ctx, t)
		}()
	}
	start()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start()
		}
	}
}

// RunTask runs the named task once, unless a run of it is already in flight.
func (e *Engine) RunTask(ctx context.Context, name string) error {
	for _, t := range e.tasks {
		if t.name == name {
			if !e.runOnce(ctx, t) {
				return fmt.Errorf("task %s already running", name)
			}
			return nil
		}
	}
	return fmt.Errorf("unknown task %q", name)
}

// runOnce executes t unless a previous run is still in flight. It reports whether it ran.
func (e *Engine) runOnce(ctx context.Context, t *task) (ran bool) {
	if !t.running.CompareAndSwap(false, true) {
		metrics.CycleRuns.WithLabelValues(t.name, "skipped").Inc()
		e.log.Debug("Previous run still in flight, skipping", zap.String("task", t.name))
		return false
	}
	ran = true
	defer t.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			metrics.CycleRuns.WithLabelValues(t.name, "panic").Inc()
			e.log.Error("Task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()

	log := e.log.With("task", t.name, "cycle", uuid.NewString())
	began := time.Now()
	err := t.fn(ctx, log)
	metrics.CycleDuration.WithLabelValues(t.name).Observe(time.Since(began).Seconds())

	switch {
	case err == nil:
		metrics.CycleRuns.WithLabelValues(t.name, "ok").Inc()
	case ctx.Err() != nil:
		metrics.CycleRuns.WithLabelValues(t.name, "cancelled").Inc()
	default:
		metrics.CycleRuns.WithLabelValues(t.name, "error").Inc()
		log.Warn("Task failed, will retry next cycle", zap.Error(err), zap.Duration("took", time.Since(began)))
	}
	return true
}

// Tasks lists the scheduled task names.
func (e *Engine) Tasks() []string {
	names := make([]string, 0, len(e.tasks))
	for _, t := range e.tasks {
		names = append(names, t.name)
	}
	return names
}
