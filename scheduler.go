package canary

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// RunFunc performs one run of the suite.
type RunFunc func(ctx context.Context) error

// TestScheduler decides when the suite runs.
type TestScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(RunFunc)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultTestScheduler runs the suite when started and then once per
// interval. In run-once mode, or without an interval, only the first run
// happens.
type DefaultTestScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	run      RunFunc

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewDefaultTestScheduler(interval time.Duration, runOnce bool, logger log.Logger) *DefaultTestScheduler {
	return &DefaultTestScheduler{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback sets the function invoked for every run.
func (s *DefaultTestScheduler) RegisterCallback(run RunFunc) {
	s.run = run
}

// Start performs the first run and returns its error. Later runs happen in
// the background and their errors are only logged.
func (s *DefaultTestScheduler) Start(ctx context.Context) error {
	if s.run == nil {
		return errors.New("no run callback registered")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.logger.Info("Running suite once")
		return s.run(ctx)
	}

	s.logger.Info("Running suite", "interval", s.interval)
	if err := s.run(ctx); err != nil {
		return err
	}
	if s.interval <= 0 {
		s.logger.Debug("No run interval, later runs depend on other triggers")
		return nil
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// loop re-runs the suite on every tick until stopped.
func (s *DefaultTestScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for n := 2; ; n++ {
		select {
		case <-s.done:
			s.logger.Debug("Suite schedule stopped")
			return
		case <-ctx.Done():
			s.logger.Debug("Suite schedule cancelled", "err", ctx.Err())
			s.running.Store(false)
			return
		case <-ticker.C:
			if !s.running.Load() {
				return
			}
			s.logger.Info("Scheduled suite run", "run", n)
			if err := s.run(ctx); err != nil {
				s.logger.Error("Scheduled suite run failed", "run", n, "err", err)
			}
		}
	}
}

// Stop prevents further runs. A run in progress is not interrupted.
func (s *DefaultTestScheduler) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	close(s.done)
	return nil
}

func (s *DefaultTestScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the background loop has returned or ctx
// expires.
func (s *DefaultTestScheduler) WaitForShutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Suite schedule did not stop in time", "err", ctx.Err())
		return ctx.Err()
	}
}
