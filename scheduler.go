package junction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// RunFunc executes one run
type RunFunc func(ctx context.Context) error

// Scheduler runs a RunFunc once, or immediately and then on every interval
// until stopped.
type Scheduler struct {
	interval time.Duration
	logger   log.Logger

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A zero interval means run-once.
func NewScheduler(interval time.Duration, logger log.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RunOnce reports whether the scheduler stops after the first run
func (s *Scheduler) RunOnce() bool {
	return s.interval <= 0
}

// Start executes fn once. In continuous mode it then keeps calling fn every
// interval from a background goroutine; errors of later runs are logged. The
// error of the first run is returned either way.
func (s *Scheduler) Start(ctx context.Context, fn RunFunc) error {
	if fn == nil {
		return errors.New("run function is required")
	}
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scheduler already started")
	}
	s.done = make(chan struct{})

	if s.RunOnce() {
		s.logger.Info("Starting scheduler in run-once mode")
		return fn(ctx)
	}

	s.logger.Info("Starting scheduler in continuous mode", "interval", s.interval)
	if err := fn(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !s.running.Load() {
					return
				}
				s.logger.Info("Running scheduled tests")
				if err := fn(ctx); err != nil {
					s.logger.Error("Error running scheduled tests", "error", err)
				}
			case <-s.done:
				s.logger.Debug("Done signal received, stopping scheduler")
				return
			case <-ctx.Done():
				s.logger.Debug("Context canceled, stopping scheduler")
				s.running.Store(false)
				return
			}
		}
	}()
	return nil
}

// Stop prevents further runs. A run in progress is not interrupted.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		s.logger.Debug("Scheduler already stopped, nothing to do")
		return
	}
	close(s.done)
}

// Stopped returns true if the scheduler is stopped
func (s *Scheduler) Stopped() bool {
	return !s.running.Load()
}

// Wait blocks until the background goroutine exits or ctx expires
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for scheduler to stop", "error", ctx.Err())
		return ctx.Err()
	}
}
