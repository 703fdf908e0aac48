package proxy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs a function on a fixed interval until stopped.
type Sweeper struct {
	interval time.Duration
	run      func(now time.Time)

	mu sync.Mutex
	c  *cron.Cron
}

// NewSweeper creates a stopped sweeper. Intervals below one second are
// rounded up to one second by the scheduler.
func NewSweeper(interval time.Duration, run func(now time.Time)) *Sweeper {
	return &Sweeper{interval: interval, run: run}
}

// Start schedules the sweep.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c != nil {
		return errors.New("sweeper already started")
	}

	s.c = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	s.c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.run(time.Now())
	}))
	s.c.Start()

	slog.Info("pending message sweep scheduled", "interval", s.interval)
	return nil
}

// Running reports whether sweeps are scheduled.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

// Stop cancels future sweeps. The returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.c == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	ctx := s.c.Stop()
	s.c = nil
	slog.Info("pending message sweep stopped")
	return ctx
}
