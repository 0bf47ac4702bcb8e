// Package sweeper re-enqueues pending tasks that never reached a worker.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// Config controls the reconciliation cadence.
type Config struct {
	Interval time.Duration
	MinAge   time.Duration
	Batch    int
}

// Sweeper periodically finds stale pending tasks and enqueues them.
type Sweeper struct {
	store  venue.TaskStore
	queue  venue.Queue
	clock  venue.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Sweeper. Zero config values fall back to a one minute
// interval, a one minute minimum age, and a batch of 50.
func New(store venue.TaskStore, queue venue.Queue, clock venue.Clock, cfg Config, logger *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MinAge < 0 {
		cfg.MinAge = 0
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:  store,
		queue:  queue,
		clock:  clock,
		cfg:    cfg,
		logger: logger.Named("sweeper"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep performs one reconciliation pass and returns the number of task ids
// it enqueued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	tasks, err := s.store.FindPending(ctx, s.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("find pending: %w", err)
	}
	cutoff := s.clock.Now().Add(-s.cfg.MinAge)
	enqueued := 0
	for _, task := range tasks {
		if task.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.queue.Enqueue(ctx, task.ID); err != nil {
			return enqueued, fmt.Errorf("enqueue %s: %w", task.ID, err)
		}
		enqueued++
		s.logger.Debug("re-enqueued pending task", zap.String("task_id", task.ID), zap.Time("created_at", task.CreatedAt))
	}
	if enqueued > 0 {
		s.logger.Info("sweep enqueued pending tasks", zap.Int("count", enqueued))
	}
	return enqueued, nil
}
