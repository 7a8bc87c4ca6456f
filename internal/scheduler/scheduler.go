// Package scheduler runs the crawl cycle on a fixed interval. At most one
// cycle is in flight; ticks that arrive while one runs are dropped.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultInterval = 10 * time.Minute

type Task func(ctx context.Context) error

var ErrNotStarted = errors.New("scheduler not started")

type Scheduler struct {
	Interval time.Duration
	Task     Task
	OnSkip   func()
	Log      *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	// mu guards the fields below. wg.Add only happens under mu while
	// stopped is false, so Stop's Wait never races a new cycle.
	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

func New(interval time.Duration, task Task, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{Interval: interval, Task: task, Log: log}
}

// Start schedules the task and runs it once immediately. Cycles receive a
// context derived from ctx that Stop cancels when its grace period ends.
// Calls after the first are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	if s.cron != nil || s.stopped {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	logger := cronLogger{s.Log.Sugar()}
	s.cron = cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() { s.TryRun() }))
	s.cron.Start()
	s.mu.Unlock()

	s.Log.Info("scheduler started", zap.Duration("interval", interval))
	s.TryRun()
}

// TryRun starts a cycle unless one is already running. It reports whether a
// cycle was started. Before Start and after Stop it always returns false.
func (s *Scheduler) TryRun() bool {
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil || s.stopped || ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		if s.OnSkip != nil {
			s.OnSkip()
		}
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if rec := recover(); rec != nil {
				s.Log.Error("crawl cycle panicked", zap.Any("panic", rec), zap.Stack("stack"))
			}
		}()

		if err := s.Task(ctx); err != nil {
			s.Log.Warn("crawl cycle finished with error", zap.Error(err))
		}
	}()
	return true
}

func (s *Scheduler) Running() bool { return s.running.Load() }

// Stop halts the timer and waits for the in-flight cycle. If ctx expires
// first the cycle is cancelled and Stop still waits for it to unwind.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cron == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.stopped = true
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	<-c.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		s.Log.Warn("crawl still running at shutdown, cancelling")
		cancel()
		<-done
		return ctx.Err()
	}
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
