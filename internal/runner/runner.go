// Package runner drives one scraping task from pending to a terminal state.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/venue-scraper/internal/metrics"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// Error messages recorded on failed tasks.
const (
	MsgTaskNotFound     = "Task not found"
	MsgExtractionFailed = "Failed to extract venue data from webpage"
)

// writeTimeout bounds status writes, which run detached from the caller's
// context so a shutdown still records the outcome.
const writeTimeout = 10 * time.Second

// Config controls Runner behavior.
type Config struct {
	// Topic receives task events; empty disables notifications.
	Topic string
}

// Runner executes scraping tasks.
type Runner struct {
	store     venue.TaskStore
	scraper   venue.PageScraper
	extractor venue.RecordExtractor
	publisher venue.Publisher
	clock     venue.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Runner. publisher may be nil.
func New(
	store venue.TaskStore,
	scraper venue.PageScraper,
	extractor venue.RecordExtractor,
	publisher venue.Publisher,
	clock venue.Clock,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:     store,
		scraper:   scraper,
		extractor: extractor,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("runner"),
	}
}

// Run processes a task and returns the status it ended in. It never panics
// and never returns an error; faults become failed tasks.
func (r *Runner) Run(ctx context.Context, taskID string) (status venue.Status) {
	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	log := r.logger.With(zap.String("task_id", taskID))
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("task panicked", zap.Any("panic", rec), zap.Stack("stack"))
			status = r.fail(ctx, log, taskID, fmt.Sprint(rec))
		}
	}()

	cancelRequested := r.canceled(ctx, log, taskID, "before_claim")

	claimed, err := r.store.ClaimTask(ctx, taskID)
	if err != nil {
		log.Error("claim task failed", zap.Error(err))
		return r.fail(ctx, log, taskID, err.Error())
	}
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		log.Error("load task failed", zap.Error(err))
		return r.fail(ctx, log, taskID, err.Error())
	}
	if task == nil {
		log.Warn("task not found")
		return r.fail(ctx, log, taskID, MsgTaskNotFound)
	}
	if !claimed {
		log.Info("task not pending; skipping", zap.String("status", string(task.Status)))
		return task.Status
	}
	// A canceled task is still claimed first so only its owner writes the
	// terminal status.
	if cancelRequested {
		return r.cancel(ctx, log, taskID)
	}
	log = log.With(zap.String("url", task.VenueURL), zap.Int64("space_id", task.SpaceID))
	log.Info("processing task")

	if r.canceled(ctx, log, taskID, "before_scrape") {
		return r.cancel(ctx, log, taskID)
	}

	start := time.Now()
	content, err := r.scraper.Scrape(ctx, task.VenueURL)
	metrics.ObservePhase("scrape", time.Since(start))
	if err != nil {
		log.Error("scrape failed", zap.String("phase", "scrape"), zap.Error(err))
		return r.fail(ctx, log, taskID, err.Error())
	}
	log.Info("page scraped",
		zap.Int("text_length", len(content.Text)),
		zap.Int("images", len(content.Images)),
	)

	if r.canceled(ctx, log, taskID, "before_extract") {
		return r.cancel(ctx, log, taskID)
	}

	start = time.Now()
	record, err := r.extractor.Extract(ctx, content)
	metrics.ObservePhase("extract", time.Since(start))
	if err != nil {
		log.Error("extraction failed", zap.String("phase", "extract"), zap.Error(err))
	}
	if record == nil {
		return r.fail(ctx, log, taskID, MsgExtractionFailed)
	}

	if r.canceled(ctx, log, taskID, "before_persist") {
		return r.cancel(ctx, log, taskID)
	}

	start = time.Now()
	item := venue.NewItem(*record, task.SpaceID, task.VenueURL, r.clock.Now())
	writeCtx, cancel := detached(ctx)
	defer cancel()
	itemID, err := r.store.CompleteTask(writeCtx, taskID, *record, item)
	metrics.ObservePhase("persist", time.Since(start))
	if err != nil {
		log.Error("complete task failed", zap.String("phase", "persist"), zap.Error(err))
		return r.fail(ctx, log, taskID, err.Error())
	}

	log.Info("task ready", zap.String("venue_item_id", itemID), zap.String("name", record.Name))
	metrics.ObserveTask(string(venue.StatusReady))
	r.notify(ctx, log, venue.Event{TaskID: taskID, Status: venue.StatusReady, VenueItemID: itemID})
	return venue.StatusReady
}

func (r *Runner) canceled(ctx context.Context, log *zap.Logger, taskID, checkpoint string) bool {
	if !r.store.IsCanceled(ctx, taskID) {
		return false
	}
	log.Info("cancellation requested", zap.String("checkpoint", checkpoint))
	return true
}

func (r *Runner) cancel(ctx context.Context, log *zap.Logger, taskID string) venue.Status {
	return r.finish(ctx, log, taskID, venue.StatusCanceled, nil)
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, taskID, msg string) venue.Status {
	return r.finish(ctx, log, taskID, venue.StatusFailed, &msg)
}

// finish writes a terminal status. When the task is already terminal the
// stored status wins.
func (r *Runner) finish(ctx context.Context, log *zap.Logger, taskID string, status venue.Status, errMsg *string) venue.Status {
	writeCtx, cancel := detached(ctx)
	defer cancel()

	if err := r.store.UpdateStatus(writeCtx, taskID, status, nil, errMsg); err != nil {
		if errors.Is(err, venue.ErrTaskFinalized) {
			if task, getErr := r.store.GetTask(writeCtx, taskID); getErr == nil && task != nil {
				log.Info("task already final", zap.String("status", string(task.Status)))
				return task.Status
			}
		}
		log.Error("status update failed", zap.String("status", string(status)), zap.Error(err))
		return status
	}

	metrics.ObserveTask(string(status))
	evt := venue.Event{TaskID: taskID, Status: status}
	if errMsg != nil {
		evt.Error = *errMsg
	}
	log.Info("task finished", zap.String("status", string(status)))
	r.notify(ctx, log, evt)
	return status
}

func (r *Runner) notify(ctx context.Context, log *zap.Logger, evt venue.Event) {
	if r.publisher == nil || r.cfg.Topic == "" {
		return
	}
	evt.Timestamp = r.clock.Now()
	writeCtx, cancel := detached(ctx)
	defer cancel()
	if _, err := r.publisher.Publish(writeCtx, r.cfg.Topic, evt); err != nil {
		log.Warn("publish task event failed", zap.Error(err))
	}
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}
