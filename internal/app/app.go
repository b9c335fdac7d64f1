// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/feedlake/social-crawler/internal/clock/system"
	"github.com/feedlake/social-crawler/internal/config"
	"github.com/feedlake/social-crawler/internal/crawl"
	"github.com/feedlake/social-crawler/internal/dispatcher"
	"github.com/feedlake/social-crawler/internal/id/uuid"
	"github.com/feedlake/social-crawler/internal/logging"
	"github.com/feedlake/social-crawler/internal/media"
	"github.com/feedlake/social-crawler/internal/metrics"
	"github.com/feedlake/social-crawler/internal/platform/reddit"
	qmemory "github.com/feedlake/social-crawler/internal/queue/memory"
	qpubsub "github.com/feedlake/social-crawler/internal/queue/pubsub"
	rmemory "github.com/feedlake/social-crawler/internal/results/memory"
	rpostgres "github.com/feedlake/social-crawler/internal/results/postgres"
	"github.com/feedlake/social-crawler/internal/storage/gcs"
	"github.com/feedlake/social-crawler/internal/storage/local"
	smemory "github.com/feedlake/social-crawler/internal/storage/memory"
	sminio "github.com/feedlake/social-crawler/internal/storage/minio"
	"github.com/feedlake/social-crawler/internal/useragent"
	"github.com/feedlake/social-crawler/internal/worker"
)

// App holds the shared services for the crawler: logger, stores, queue,
// platform client, dispatcher, and worker pool. It is initialized once
// at startup and fails fast when any critical service cannot be built.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Stores     map[string]crawl.ObjectStore
	Queue      crawl.Queue
	Results    crawl.ResultStore
	Platform   crawl.PlatformClient
	Media      *media.Fetcher
	Dispatcher *dispatcher.Dispatcher
	Worker     *worker.Worker

	closers []func()
}

// New builds the service graph from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	agents, err := loadAgents(cfg.Crawler.UserAgentsFile)
	if err != nil {
		return nil, err
	}

	if err := a.buildStores(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.buildQueue(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if err := a.buildResults(ctx, cfg); err != nil {
		return nil, err
	}

	// The platform client and the media fetcher each get their own
	// throttle so their pacing is independent.
	a.Platform = reddit.New(cfg.Reddit, crawl.NewThrottle(cfg.Crawler.Throttle()), agents, logger)
	a.Media, err = media.NewFetcher(
		media.Config{DownloadDir: cfg.Media.DownloadDir, Timeout: cfg.Media.MediaTimeout()},
		crawl.NewThrottle(cfg.Crawler.Throttle()),
		agents,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("initialize media fetcher: %w", err)
	}

	a.Dispatcher = dispatcher.New(a.Queue, uuid.New(), system.New(), logger)
	a.Worker = worker.New(
		a.Queue,
		a.Platform,
		a.Stores,
		a.Results,
		a.Media,
		worker.Config{
			Tier:           cfg.Crawler.Tier,
			DefaultStorage: cfg.Storage.Backend,
			Retry:          retryConfig(cfg.Retry),
		},
		logger,
	)

	logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("queue", cfg.Queue.Transport),
		zap.String("results", cfg.Results.Backend))
	return a, nil
}

// NewPool builds the worker pool at the configured concurrency.
func (a *App) NewPool() *worker.Pool {
	return worker.NewPool(a.Worker, a.Config.Crawler.Concurrency, a.Logger)
}

func loadAgents(path string) (*useragent.Pool, error) {
	if path == "" {
		return useragent.Default(), nil
	}
	agents, err := useragent.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load user agents: %w", err)
	}
	return agents, nil
}

// buildStores constructs every backend the configuration can support so
// queue items may select a backend by name. The configured default is
// always present.
func (a *App) buildStores(ctx context.Context, cfg config.Config) error {
	a.Stores = map[string]crawl.ObjectStore{
		"memory": smemory.New(),
	}

	localStore, err := local.New(cfg.Storage.Local)
	if err != nil {
		return fmt.Errorf("initialize local storage: %w", err)
	}
	a.Stores["local"] = localStore

	if cfg.Storage.Minio.Endpoint != "" && cfg.Storage.Minio.Bucket != "" {
		minioStore, err := sminio.New(ctx, cfg.Storage.Minio)
		if err != nil {
			return fmt.Errorf("initialize minio storage: %w", err)
		}
		a.Stores["minio"] = minioStore
	}

	if cfg.Storage.GCS.Bucket != "" {
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		gcsStore, err := gcs.New(ctx, client, cfg.Storage.GCS)
		if err != nil {
			return fmt.Errorf("initialize gcs storage: %w", err)
		}
		a.Stores["gcs"] = gcsStore
		a.closers = append(a.closers, func() { _ = client.Close() })
	}

	if _, ok := a.Stores[cfg.Storage.Backend]; !ok {
		return fmt.Errorf("storage backend %q selected but not configured", cfg.Storage.Backend)
	}
	return nil
}

func (a *App) buildQueue(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	switch cfg.Queue.Transport {
	case "memory":
		q := qmemory.New(cfg.Queue.Depth)
		a.Queue = q
		a.closers = append(a.closers, q.Close)
	case "pubsub":
		q, err := qpubsub.New(ctx, cfg.Queue.PubSub, logger)
		if err != nil {
			return fmt.Errorf("initialize pubsub queue: %w", err)
		}
		a.Queue = q
		a.closers = append(a.closers, func() { _ = q.Close() })
	default:
		return fmt.Errorf("unknown queue transport %q", cfg.Queue.Transport)
	}
	return nil
}

func (a *App) buildResults(ctx context.Context, cfg config.Config) error {
	switch cfg.Results.Backend {
	case "memory":
		a.Results = rmemory.New()
	case "postgres":
		store, err := rpostgres.NewStore(ctx, rpostgres.StoreConfig{DSN: cfg.Results.DSN})
		if err != nil {
			return fmt.Errorf("initialize postgres results: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		a.Results = store
		a.closers = append(a.closers, store.Close)
	default:
		return fmt.Errorf("unknown results backend %q", cfg.Results.Backend)
	}
	return nil
}

func retryConfig(cfg config.RetryConfig) crawl.RetryConfig {
	rc := crawl.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseSeconds > 0 {
		rc.BaseDelay = time.Duration(cfg.BaseSeconds) * time.Second
	}
	if cfg.MaxSeconds > 0 {
		rc.MaxDelay = time.Duration(cfg.MaxSeconds) * time.Second
	}
	return rc
}

// Close shuts down all services and flushes the logger.
func (a *App) Close() {
	a.Logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.Logger.Sync()
}
