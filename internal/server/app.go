// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-scraper/internal/api"
	"github.com/JakeFAU/venue-scraper/internal/clock/system"
	"github.com/JakeFAU/venue-scraper/internal/config"
	"github.com/JakeFAU/venue-scraper/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/venue-scraper/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/venue-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/venue-scraper/internal/hash/sha256"
	"github.com/JakeFAU/venue-scraper/internal/headless/detector"
	"github.com/JakeFAU/venue-scraper/internal/llm"
	"github.com/JakeFAU/venue-scraper/internal/metrics"
	"github.com/JakeFAU/venue-scraper/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/venue-scraper/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/venue-scraper/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/venue-scraper/internal/queue/memory"
	redisqueue "github.com/JakeFAU/venue-scraper/internal/queue/redis"
	"github.com/JakeFAU/venue-scraper/internal/runner"
	"github.com/JakeFAU/venue-scraper/internal/scraper"
	gcsstorage "github.com/JakeFAU/venue-scraper/internal/storage/gcs"
	localstorage "github.com/JakeFAU/venue-scraper/internal/storage/local"
	memoryStorage "github.com/JakeFAU/venue-scraper/internal/storage/memory"
	pgstore "github.com/JakeFAU/venue-scraper/internal/storage/postgres"
	"github.com/JakeFAU/venue-scraper/internal/sweeper"
	"github.com/JakeFAU/venue-scraper/internal/venue"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     venue.TaskStore
	queue     venue.Queue
	runner    *runner.Runner
	dispatch  *dispatcher.Dispatcher
	sweeper   *sweeper.Sweeper
	apiServer *api.Server

	memQueue   *queueMemory.Queue
	redisQueue *redisqueue.Queue
	pgStore    *pgstore.TaskStore
	gcsClient  *storage.Client
	publisher  *gcppublisher.Publisher
	headless   *headlessfetcher.Fetcher
	extractor  *llm.Extractor
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.StoreDriver()),
		zap.String("queue", cfg.Queue.Driver),
		zap.String("snapshot", cfg.Snapshot.Driver),
		zap.String("notify", cfg.Notify.Driver),
	)

	clock := system.New()
	if err := app.setupStore(ctx, clock); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.setupQueue()

	blobStore, err := app.setupSnapshots(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	pageScraper := app.setupScraper(blobStore)
	app.extractor = llm.New(llm.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           cfg.LLMTimeout(),
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, logger)
	if !app.extractor.Configured() {
		app.logger.Warn("llm api key not configured; extraction will fail every task")
	}

	topic := ""
	if cfg.Notify.Driver != config.DriverNone {
		topic = cfg.Notify.Topic
	}
	app.runner = runner.New(app.store, pageScraper, app.extractor, publisher, clock, runner.Config{Topic: topic}, logger)
	app.dispatch = dispatcher.NewPool(cfg.Worker.Concurrency, app.queue, app.runner, logger)
	app.sweeper = sweeper.New(app.store, app.queue, clock, sweeper.Config{
		Interval: time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second,
		MinAge:   time.Duration(cfg.Sweeper.MinAgeSeconds) * time.Second,
		Batch:    cfg.Sweeper.Batch,
	}, logger)
	app.apiServer = api.NewServer(app.store, app.dispatch, cfg, logger)
	return app, nil
}

func (a *App) setupStore(ctx context.Context, clock venue.Clock) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no db.dsn configured, using in-memory task store")
		a.store = memoryStorage.NewTaskStore(clock)
		return nil
	}
	store, err := pgstore.NewTaskStore(ctx, pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("task store init failed: %w", err)
	}
	a.pgStore = store
	a.store = store
	a.logger.Info("postgres task store initialized")
	return nil
}

func (a *App) setupQueue() {
	if a.cfg.Queue.Driver == config.DriverRedis {
		a.redisQueue = redisqueue.New(redisqueue.Config{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			Key:      a.cfg.Redis.Key,
		})
		a.queue = a.redisQueue
		a.logger.Info("using redis task queue", zap.String("addr", a.cfg.Redis.Addr), zap.String("key", a.cfg.Redis.Key))
		return
	}
	a.memQueue = queueMemory.NewQueue(a.cfg.Queue.Depth)
	a.queue = a.memQueue
	a.logger.Info("using in-memory task queue", zap.Int("depth", a.cfg.Queue.Depth))
}

func (a *App) setupSnapshots(ctx context.Context) (venue.BlobStore, error) {
	switch a.cfg.Snapshot.Driver {
	case config.DriverGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Snapshot.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS snapshot storage", zap.String("bucket", a.cfg.Snapshot.Bucket))
		return blobStore, nil
	case config.DriverLocal:
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Snapshot.Dir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local snapshot storage", zap.String("path", a.cfg.Snapshot.Dir))
		return blobStore, nil
	case config.DriverMemory:
		a.logger.Info("using in-memory snapshot storage")
		return memoryStorage.NewBlobStore(), nil
	default:
		a.logger.Info("page snapshots disabled")
		return nil, nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (venue.Publisher, error) {
	switch a.cfg.Notify.Driver {
	case config.DriverPubSub:
		publisher, err := gcppublisher.NewForProject(ctx, a.cfg.Notify.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
		}
		a.publisher = publisher
		a.logger.Info("Pub/Sub publisher initialized",
			zap.String("project", a.cfg.Notify.ProjectID),
			zap.String("topic", a.cfg.Notify.Topic),
		)
		return publisher, nil
	case config.DriverMemory:
		a.logger.Info("using in-memory publisher")
		return memorypublisher.New(), nil
	default:
		return nil, nil
	}
}

func (a *App) setupScraper(blobStore venue.BlobStore) *scraper.Scraper {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Scraper.UserAgent,
		RespectRobots: a.cfg.Scraper.RespectRobots,
		Timeout:       a.cfg.FetchTimeout(),
	})
	a.logger.Info("using colly probe fetcher", zap.String("user_agent", a.cfg.Scraper.UserAgent))

	var headless venue.Fetcher = headlessfetcher.NewNoop()
	if a.cfg.Scraper.HeadlessEnabled {
		fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Scraper.HeadlessMaxParallel,
			UserAgent:         a.cfg.Scraper.UserAgent,
			NavigationTimeout: time.Duration(a.cfg.Scraper.HeadlessNavTimeoutSeconds) * time.Second,
		})
		if err != nil {
			a.logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			a.headless = fetcher
			headless = fetcher
			a.logger.Info("using headless fetcher", zap.Int("max_parallel", a.cfg.Scraper.HeadlessMaxParallel))
		}
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.Scraper.DomainRPS,
		DefaultBurst: a.cfg.Scraper.DomainBurst,
	})
	return scraper.New(
		limiter,
		probe,
		headless,
		detector.NewHeuristic(a.cfg.Scraper.HeadlessThreshold),
		blobStore,
		sha256.New(),
		scraper.Config{
			FetchTimeout:   a.cfg.FetchTimeout(),
			RespectRobots:  a.cfg.Scraper.RespectRobots,
			SnapshotPrefix: a.cfg.Snapshot.Prefix,
		},
		a.logger,
	)
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Store exposes the task store for commands that seed or inspect tasks.
func (a *App) Store() venue.TaskStore {
	return a.store
}

// RunTask processes one task synchronously.
func (a *App) RunTask(ctx context.Context, taskID string) venue.Status {
	return a.runner.Run(ctx, taskID)
}

// Sweep performs one reconciliation pass.
func (a *App) Sweep(ctx context.Context) (int, error) {
	n, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return n, fmt.Errorf("sweep: %w", err)
	}
	return n, nil
}

// Run serves HTTP, runs the worker pool, and sweeps until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.dispatch.Size()))
		a.dispatch.Run(ctx)
	}()

	if a.cfg.Sweeper.Enabled {
		go func() {
			a.logger.Info("sweeper started")
			a.sweeper.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("workers did not drain before shutdown deadline")
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close gracefully shuts down the application.
func (a *App) Close() error {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.memQueue != nil {
		a.memQueue.Close()
	}
	if a.redisQueue != nil {
		if err := a.redisQueue.Close(); err != nil {
			a.logger.Warn("redis queue close failed", zap.Error(err))
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.extractor != nil {
		if err := a.extractor.Close(); err != nil {
			a.logger.Warn("llm client close failed", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
}
