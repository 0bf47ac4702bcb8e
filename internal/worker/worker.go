// Package worker consumes task ids from the queue and runs them.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// dequeueBackoff spaces retries after a queue error.
const dequeueBackoff = time.Second

// TaskRunner runs one task to completion.
type TaskRunner interface {
	Run(ctx context.Context, taskID string) venue.Status
}

// Worker pulls task ids from a queue and hands them to a runner, one at a time.
type Worker struct {
	id     int
	queue  venue.Queue
	runner TaskRunner
	logger *zap.Logger
}

// New constructs a Worker.
func New(id int, queue venue.Queue, runner TaskRunner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:     id,
		queue:  queue,
		runner: runner,
		logger: logger.Named("worker").With(zap.Int("worker_id", id)),
	}
}

// Run blocks, consuming task ids until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		taskID, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}
		if taskID == "" {
			continue
		}
		w.logger.Debug("dequeued task", zap.String("task_id", taskID))
		status := w.runner.Run(ctx, taskID)
		w.logger.Debug("task run finished", zap.String("task_id", taskID), zap.String("status", string(status)))
	}
}
