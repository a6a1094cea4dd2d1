// Package app builds and runs the long-lived services of the image finder:
// the crawl engine, the job store and queue, the dispatcher and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/imagefinder/internal/api"
	"github.com/JakeFAU/imagefinder/internal/clock/system"
	"github.com/JakeFAU/imagefinder/internal/config"
	"github.com/JakeFAU/imagefinder/internal/crawler"
	"github.com/JakeFAU/imagefinder/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/imagefinder/internal/fetcher/colly"
	"github.com/JakeFAU/imagefinder/internal/hash/sha256"
	"github.com/JakeFAU/imagefinder/internal/id/uuid"
	goqueryparser "github.com/JakeFAU/imagefinder/internal/parser/goquery"
	"github.com/JakeFAU/imagefinder/internal/progress"
	"github.com/JakeFAU/imagefinder/internal/progress/sinks"
	queueMemory "github.com/JakeFAU/imagefinder/internal/queue/memory"
	memoryStorage "github.com/JakeFAU/imagefinder/internal/storage/memory"
	"github.com/JakeFAU/imagefinder/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App holds the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	engine    *crawler.Engine
	jobStore  *memoryStorage.JobStore
	queue     *queueMemory.Queue[crawler.QueueItem]
	hub       *progress.Hub
	dispatch  *dispatcher.Dispatcher
	apiServer *api.Server
}

// NewEngine wires the crawl engine with the colly transport, the goquery
// parser and the SHA-256 page hasher.
func NewEngine(cfg config.Config, logger *zap.Logger) *crawler.Engine {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	return crawler.NewEngine(fetcher, goqueryparser.New(), sha256.New(), logger.Named("engine"))
}

// Build creates the application's dependencies.
func Build(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.Int("job_workers", cfg.Crawler.JobWorkers),
		zap.Int("queue_depth", cfg.Crawler.QueueDepth),
		zap.Bool("auth_enabled", cfg.Auth.Enabled),
	)

	a := &App{
		cfg:      cfg,
		logger:   logger,
		engine:   NewEngine(cfg, logger),
		jobStore: memoryStorage.NewJobStore(),
		queue:    queueMemory.NewQueue[crawler.QueueItem](cfg.Crawler.QueueDepth),
	}

	registry := worker.NewRegistry()
	workerCfg := worker.Config{Defaults: cfg.CrawlOptions()}
	if a.hub = setupProgress(cfg, a.jobStore, logger); a.hub != nil {
		workerCfg.Progress = a.hub
	}
	workers := make([]*worker.Worker, 0, cfg.Crawler.JobWorkers)
	for i := range cfg.Crawler.JobWorkers {
		workers = append(workers, worker.New(
			a.queue,
			a.jobStore,
			a.engine,
			registry,
			workerCfg,
			logger.Named("worker").With(zap.Int("worker", i)),
		))
	}
	a.dispatch = dispatcher.New(a.queue, workers, registry)

	a.apiServer = api.NewServer(
		a.engine,
		a.jobStore,
		a.dispatch,
		uuid.New(),
		system.New(),
		cfg,
		logger.Named("api"),
	)
	return a
}

// setupProgress starts the hub that feeds live counters into the job store.
// It returns nil when progress tracking is disabled.
func setupProgress(cfg config.Config, jobStore *memoryStorage.JobStore, logger *zap.Logger) *progress.Hub {
	if !cfg.Progress.Enabled {
		logger.Info("progress tracking disabled")
		return nil
	}
	sinkList := []progress.Sink{sinks.NewStoreSink(jobStore, logger.Named("progress_store"))}
	if cfg.Progress.LogEvents {
		sinkList = append(sinkList, sinks.NewLogSink(logger.Named("progress_log")))
	}
	hubCfg := progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   time.Duration(cfg.Progress.MaxBatchWaitMs) * time.Millisecond,
		Logger:         logger.Named("progress_hub"),
	}
	logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Int("sinks", len(sinkList)),
	)
	return progress.NewHub(hubCfg, sinkList...)
}

// Engine exposes the crawl engine for one-shot crawls.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Handler returns the API router.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run listens on the configured port and serves until ctx ends.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the dispatcher and the HTTP server on ln until ctx ends or the
// server fails, then shuts both down and releases the queue.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("dispatcher started")
		a.dispatch.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close releases the queue, drains the progress hub and flushes the logger.
func (a *App) Close() {
	a.queue.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close failed", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}
