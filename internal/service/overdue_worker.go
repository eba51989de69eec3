package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// OverdueSweeper recomputes open loans against today's date
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (*SweepResult, error)
}

// OverdueWorker runs the overdue sweep on a cron schedule so that loans turn overdue
// without waiting for a payment action
type OverdueWorker struct {
	sweeper    OverdueSweeper
	logger     zerolog.Logger
	schedule   string
	runOnStart bool
	cron       *cron.Cron
	mu         sync.Mutex
	running    bool
	sweeping   sync.Mutex
	inflight   sync.WaitGroup
}

// OverdueWorkerConfig holds configuration for the overdue worker
type OverdueWorkerConfig struct {
	// Schedule is a cron spec or descriptor such as "@every 1h" or "5 0 * * *"
	Schedule string
	// RunOnStart sweeps once immediately when the worker starts
	RunOnStart bool
}

// DefaultOverdueWorkerConfig returns sensible defaults
func DefaultOverdueWorkerConfig() OverdueWorkerConfig {
	return OverdueWorkerConfig{
		Schedule:   "@every 1h",
		RunOnStart: true,
	}
}

// NewOverdueWorker creates a new overdue worker
func NewOverdueWorker(sweeper OverdueSweeper, logger zerolog.Logger, config OverdueWorkerConfig) (*OverdueWorker, error) {
	if config.Schedule == "" {
		config.Schedule = DefaultOverdueWorkerConfig().Schedule
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("invalid overdue sweep schedule %q: %w", config.Schedule, err)
	}

	w := &OverdueWorker{
		sweeper:    sweeper,
		logger:     logger.With().Str("component", "overdue_worker").Logger(),
		schedule:   config.Schedule,
		runOnStart: config.RunOnStart,
	}
	w.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return w, nil
}

// Start schedules the sweep. Calling it twice is a no-op.
func (w *OverdueWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if _, err := w.cron.AddFunc(w.schedule, func() {
		w.inflight.Add(1)
		defer w.inflight.Done()
		w.Sweep(ctx)
	}); err != nil {
		return err
	}
	w.cron.Start()
	w.running = true

	w.logger.Info().Str("schedule", w.schedule).Msg("Starting overdue worker")

	if w.runOnStart {
		w.inflight.Add(1)
		go func() {
			defer w.inflight.Done()
			w.Sweep(ctx)
		}()
	}
	return nil
}

// Stop waits for a sweep in progress and stops the schedule
func (w *OverdueWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping overdue worker")
	<-w.cron.Stop().Done()
	w.inflight.Wait()
	w.logger.Info().Msg("Overdue worker stopped")
}

// Sweep runs one sweep now. Concurrent calls are serialized.
func (w *OverdueWorker) Sweep(ctx context.Context) *SweepResult {
	w.sweeping.Lock()
	defer w.sweeping.Unlock()

	if ctx.Err() != nil {
		return nil
	}

	start := time.Now()
	result, err := w.sweeper.SweepOverdue(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Overdue sweep finished with errors")
	}
	if result == nil {
		return nil
	}

	w.logger.Info().
		Int("checked", result.Checked).
		Int("changed", result.Changed).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Completed overdue sweep")
	return result
}

// IsRunning returns whether the worker is currently scheduled
func (w *OverdueWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
