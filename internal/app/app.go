// Package app initializes and holds the long-lived services of the crawl
// engine, and drives the graceful shutdown sequence.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/heldertheking/search-engine-crawler/internal/api"
	"github.com/heldertheking/search-engine-crawler/internal/clock/system"
	"github.com/heldertheking/search-engine-crawler/internal/config"
	"github.com/heldertheking/search-engine-crawler/internal/crawler"
	collyfetcher "github.com/heldertheking/search-engine-crawler/internal/fetcher/colly"
	"github.com/heldertheking/search-engine-crawler/internal/metrics"
	"github.com/heldertheking/search-engine-crawler/internal/pool"
	"github.com/heldertheking/search-engine-crawler/internal/robots"
	"github.com/heldertheking/search-engine-crawler/internal/scheduler"
	"github.com/heldertheking/search-engine-crawler/internal/shutdown"
	"github.com/heldertheking/search-engine-crawler/internal/storage/memory"
	"github.com/heldertheking/search-engine-crawler/internal/storage/postgres"
	"github.com/heldertheking/search-engine-crawler/internal/store"
)

const (
	drainPollInterval = 50 * time.Millisecond
	drainTimeout      = 30 * time.Second
	httpStopTimeout   = 10 * time.Second
	requeueTimeout    = 10 * time.Second
)

// App wires the crawl engine, worker pool, scheduler, stores, and HTTP
// server, and owns their lifecycles.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	clock       system.Clock
	queue       store.QueueStore
	restricted  store.RestrictedLog
	pgPool      *pgxpool.Pool
	coordinator *shutdown.Coordinator
	pool        *pool.Pool
	scheduler   *scheduler.Scheduler
	server      *http.Server
}

// New builds the full service from configuration. It fails fast when any
// dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	clock := system.New()

	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  clock,
	}

	switch cfg.DB.Provider {
	case "postgres":
		logger.Info("connecting to postgres")
		pgPool, err := postgres.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres: %w", err)
		}
		a.pgPool = pgPool
		a.queue = postgres.NewQueueStore(pgPool)
		a.restricted = postgres.NewRestrictedLog(pgPool)
	case "memory":
		logger.Info("using in-memory stores, crawl state will not survive restarts")
		a.queue = memory.NewQueueStore()
		a.restricted = memory.NewRestrictedLog()
	default:
		return nil, fmt.Errorf("unknown db provider: %s", cfg.DB.Provider)
	}

	a.coordinator = shutdown.NewCoordinator(logger.Named("shutdown"))

	robotsCache := robots.NewCache(
		cfg.Crawler.UserAgent,
		cfg.Robots.FetchTimeout(),
		logger.Named("robots"),
	)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTP.Timeout(),
	})
	engine := crawler.NewEngine(
		a.queue,
		a.restricted,
		robotsCache,
		fetcher,
		a.coordinator,
		clock,
		crawler.EngineConfig{
			MaxDepth:        cfg.Crawler.MaxDepth,
			UserAgent:       cfg.Crawler.UserAgent,
			PolitenessDelay: cfg.Crawler.PolitenessDelay(),
		},
		logger.Named("engine"),
	)

	a.pool = pool.New(
		pool.Config{
			MinWorkers: cfg.Pool.MinWorkers,
			MaxWorkers: cfg.Pool.MaxWorkers,
			Backlog:    cfg.Pool.Backlog,
		},
		engine.Run,
		clock,
		logger.Named("pool"),
	)
	a.scheduler = scheduler.New(
		a.queue,
		a.pool,
		a.coordinator,
		cfg.Scheduler.Interval(),
		logger.Named("scheduler"),
	)

	apiServer := api.NewServer(a.queue, a.pool, logger.Named("api"))
	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the pool, scheduler, and HTTP server, then blocks until ctx is
// canceled and the shutdown sequence completes.
func (a *App) Run(ctx context.Context) error {
	// Workers get their own context: on shutdown they drain cooperatively
	// via the stop flag first, and the hard cancel fires only after the
	// grace period.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	a.pool.Start(runCtx)
	if err := a.scheduler.Start(runCtx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if err := a.seed(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.stop(cancelRuns)
	return nil
}

// seed inserts configured seed URLs as PENDING queue items, skipping URLs
// that already have a row.
func (a *App) seed(ctx context.Context) error {
	for _, rawURL := range a.cfg.Crawler.Seeds {
		base, err := crawler.BaseURL(rawURL)
		if err != nil {
			return fmt.Errorf("seed %q: %w", rawURL, err)
		}
		if _, err := a.queue.FindByURL(ctx, base); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("seed lookup %q: %w", base, err)
		}
		item := store.QueueItem{
			URL:       base,
			Status:    store.StatusPending,
			CreatedAt: a.clock.Now(),
		}
		if err := a.queue.Save(ctx, item); err != nil {
			return fmt.Errorf("seed save %q: %w", base, err)
		}
		a.logger.Info("seeded queue item", zap.String("url", base))
	}
	return nil
}

// stop performs the graceful shutdown sequence: flip the stop flag, halt the
// scheduler and HTTP server, wait for active runs to drain, then requeue
// whatever is still IN_PROGRESS so it survives the restart.
func (a *App) stop(cancelRuns context.CancelFunc) {
	a.logger.Info("shutting down")
	a.coordinator.RequestStop()
	a.scheduler.Stop()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), httpStopTimeout)
	defer cancelHTTP()
	if err := a.server.Shutdown(httpCtx); err != nil {
		a.logger.Warn("http server shutdown failed", zap.Error(err))
	}

	a.drainRuns()
	cancelRuns()
	a.pool.Wait()

	requeueCtx, cancelRequeue := context.WithTimeout(context.Background(), requeueTimeout)
	defer cancelRequeue()
	if err := a.coordinator.RequeueInFlight(requeueCtx, a.queue, a.clock); err != nil {
		a.logger.Error("requeue of in-progress items failed", zap.Error(err))
	}

	if a.pgPool != nil {
		a.pgPool.Close()
	}
	a.logger.Info("shutdown complete")
}

// drainRuns waits for the active-run registry to empty, bounded by
// drainTimeout. Runs observe the stop flag at their checkpoints; a run mid
// fetch finishes that fetch before noticing.
func (a *App) drainRuns() {
	deadline := time.Now().Add(drainTimeout)
	for a.pool.Registry().Len() > 0 {
		if time.Now().After(deadline) {
			a.logger.Warn("drain timeout reached, canceling remaining runs",
				zap.Int("active", a.pool.Registry().Len()))
			return
		}
		time.Sleep(drainPollInterval)
	}
}
