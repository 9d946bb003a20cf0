package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"WerchterMonitor/internal/logging"
	"WerchterMonitor/internal/ports"
)

const (
	backoffBase = 30 * time.Second
	backoffMax  = time.Hour

	// alarmThreshold is the failure streak that escalates logging to critical.
	alarmThreshold = 5
)

// State is the scheduler lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SchedulerDeps wires the long-running loop.
type SchedulerDeps struct {
	Pipeline   *Pipeline
	Store      ports.ProcessedStore
	Delivery   ports.Deliverer
	Clock      ports.Clock
	Schedule   ports.Schedule
	MaxAgeDays int
	Logger     *slog.Logger
}

// Scheduler drives the pipeline forever: a cycle, then a wait that depends
// on whether the cycle succeeded, until it is asked to stop.
type Scheduler struct {
	pipeline   *Pipeline
	store      ports.ProcessedStore
	delivery   ports.Deliverer
	clock      ports.Clock
	schedule   ports.Schedule
	maxAgeDays int
	logger     *slog.Logger

	mu                sync.Mutex
	state             State
	cancel            context.CancelFunc
	shutdownRequested bool

	consecutiveErrors int
}

// NewScheduler returns an idle scheduler.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Scheduler{
		pipeline:   deps.Pipeline,
		store:      deps.Store,
		delivery:   deps.Delivery,
		clock:      deps.Clock,
		schedule:   deps.Schedule,
		maxAgeDays: deps.MaxAgeDays,
		logger:     deps.Logger,
	}
}

// BackoffDelay is the wait after failures consecutive failed cycles.
func BackoffDelay(failures int) time.Duration {
	if failures < 0 {
		failures = 0
	}
	if failures >= 7 {
		return backoffMax
	}
	return min(backoffBase<<failures, backoffMax)
}

// Run loops until ctx is cancelled or Stop is called, then shuts down:
// the outbound session is released and a final prune is performed.
func (s *Scheduler) Run(ctx context.Context) error {
	runCtx, ok := s.start(ctx)
	if !ok {
		return errors.New("scheduler already started")
	}

	s.logger.Info("monitoring started")
	for !s.stopping(runCtx) {
		wait := s.cycle(runCtx)
		if s.stopping(runCtx) {
			break
		}
		if err := s.clock.Sleep(runCtx, wait); err != nil {
			break
		}
	}

	s.shutdown(context.WithoutCancel(ctx))
	return nil
}

// RunOnce performs a single cycle and shuts down. The cycle error, if any,
// is returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	runCtx, ok := s.start(ctx)
	if !ok {
		return errors.New("scheduler already started")
	}

	_, err := s.pipeline.RunCycle(runCtx)
	s.shutdown(context.WithoutCancel(ctx))
	return err
}

// Stop requests shutdown. It is a no-op unless the loop is running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	s.shutdownRequested = true
	if s.cancel != nil {
		s.cancel()
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConsecutiveErrors is the current failure streak.
func (s *Scheduler) ConsecutiveErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveErrors
}

func (s *Scheduler) start(ctx context.Context) (context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return nil, false
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateRunning
	return runCtx, true
}

func (s *Scheduler) stopping(ctx context.Context) bool {
	s.mu.Lock()
	requested := s.shutdownRequested
	s.mu.Unlock()
	return requested || ctx.Err() != nil
}

// cycle runs the pipeline once and returns how long to wait before the next.
func (s *Scheduler) cycle(ctx context.Context) time.Duration {
	report, err := s.pipeline.RunCycle(ctx)
	if err != nil && ctx.Err() != nil {
		return 0
	}

	if err != nil {
		s.mu.Lock()
		s.consecutiveErrors++
		failures := s.consecutiveErrors
		s.mu.Unlock()

		wait := BackoffDelay(failures)
		s.logger.Error("monitoring cycle failed",
			"consecutive_errors", failures,
			"retry_in", wait,
			"error", err)
		if failures >= alarmThreshold {
			s.logger.Log(ctx, logging.LevelCritical,
				"repeated consecutive failures, check connectivity and upstream services",
				"consecutive_errors", failures)
		}
		return wait
	}

	s.mu.Lock()
	s.consecutiveErrors = 0
	s.mu.Unlock()

	now := s.clock.Now()
	wait := s.schedule.Next(now).Sub(now)
	if wait < 0 {
		wait = 0
	}
	s.logger.Info("cycle completed",
		"fetched", report.Fetched,
		"new", report.Fresh,
		"delivered", report.Delivered,
		"failed", report.Failed,
		"pruned", report.Pruned,
		"next_check_in", wait)
	return wait
}

func (s *Scheduler) shutdown(ctx context.Context) {
	s.mu.Lock()
	s.state = StateShuttingDown
	s.mu.Unlock()

	s.logger.Info("shutting down")

	if err := s.delivery.Close(); err != nil {
		s.logger.Error("release messenger", "error", err)
	} else {
		s.logger.Info("messenger released")
	}

	if _, err := s.store.PruneOlderThan(ctx, s.maxAgeDays, s.clock.Now()); err != nil {
		s.logger.Error("final prune", "error", err)
	}

	s.mu.Lock()
	s.state = StateStopped
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.logger.Info("shutdown complete")
}
