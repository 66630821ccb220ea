package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Clock abstracts time for deterministic scheduling tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Runner executes the work driven by the scheduler.
type Runner interface {
	// RunCycle performs one fetch-normalize-store cycle.
	RunCycle(ctx context.Context) error
	// RunRetention prunes aged history.
	RunRetention(ctx context.Context) error
}

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration // Cycle interval (default: 5m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute}
}

// Scheduler invokes cycles on a fixed interval until stopped. Cycles are
// single-flight: one that overruns the interval delays the next, it is never
// run concurrently with it.
type Scheduler struct {
	cfg    Config
	runner Runner
	clock  Clock
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Scheduler.
func New(cfg Config, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		clock:  realClock{},
		logger: logger,
	}
}

// Start begins the scheduling loop. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("scheduler started", "interval", s.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for an in-flight cycle
// to finish or abort.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main scheduling loop. Per-cycle errors are contained; only
// context cancellation ends the loop.
func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		start := s.clock.Now()

		if err := s.runner.RunCycle(s.ctx); err != nil {
			s.logger.Debug("cycle returned error", "error", err)
		}
		if s.ctx.Err() != nil {
			return
		}
		if err := s.runner.RunRetention(s.ctx); err != nil {
			s.logger.Debug("retention returned error", "error", err)
		}

		// Sleep the remainder of the interval; an overrun means the next
		// cycle starts immediately rather than stacking up.
		elapsed := s.clock.Now().Sub(start)
		wait := s.cfg.Interval - elapsed
		if wait < 0 {
			wait = 0
		}

		select {
		case <-s.ctx.Done():
			return
		case <-s.clock.After(wait):
		}
	}
}
