// Package worker runs queued crawl jobs against the crawl engine.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/crawler"
	"github.com/JakeFAU/imagefinder/internal/metrics"
	"github.com/JakeFAU/imagefinder/internal/progress"
	"github.com/JakeFAU/imagefinder/internal/queue/memory"
)

// Config controls Worker behavior.
type Config struct {
	// Defaults are the crawl options used when a job leaves a knob unset.
	Defaults crawler.Options
	// Progress receives job lifecycle and per-page events. Nil disables them.
	Progress progress.Emitter
}

// Worker consumes queue items and executes one crawl per item.
type Worker struct {
	queue    crawler.Queue
	jobStore crawler.JobStore
	crawler  crawler.Crawler
	registry *Registry
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. A nil registry gives the worker a private one.
func New(
	queue crawler.Queue,
	jobStore crawler.JobStore,
	c crawler.Crawler,
	registry *Registry,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Worker{
		queue:    queue,
		jobStore: jobStore,
		crawler:  c,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item crawler.QueueItem) {
	logger := w.logger.With(zap.String("job_id", item.JobID), zap.String("url", item.Params.URL))
	jobCtx, release, skip := w.registry.begin(ctx, item.JobID)
	defer release()

	if skip {
		logger.Info("job canceled before start")
		w.finish(ctx, logger, item.JobID, crawler.JobStatusCanceled, "canceled before start", crawler.JobCounters{})
		return
	}
	if w.crawler == nil {
		logger.Error("no crawler configured")
		w.finish(ctx, logger, item.JobID, crawler.JobStatusFailed, "no crawler configured", crawler.JobCounters{})
		return
	}

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, crawler.JobStatusRunning, "", crawler.JobCounters{}); err != nil {
		logger.Error("update job status failed", zap.Error(err))
		return
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	start := time.Now()
	opts := w.optionsFor(item.Params)
	if w.cfg.Progress != nil {
		w.emit(progress.Event{JobID: item.JobID, Stage: progress.StageJobStart})
		opts.OnPage = func(page crawler.PageRecord) {
			w.cfg.Progress.Emit(progress.PageEvent(item.JobID, page, time.Now().UTC()))
		}
	}
	result, err := w.crawler.Crawl(jobCtx, item.Params.URL, opts)
	status, errText := deriveFinalStatus(jobCtx, result, err)
	if err == nil {
		if saveErr := w.jobStore.SaveResult(ctx, item.JobID, result); saveErr != nil {
			logger.Error("save result failed", zap.Error(saveErr))
			status, errText = crawler.JobStatusFailed, saveErr.Error()
		}
	}
	logger.Info("job finished",
		zap.String("status", string(status)),
		zap.Int("images", result.Counters.ImagesFound),
		zap.Bool("interrupted", result.Interrupted),
		zap.Duration("elapsed", time.Since(start)),
	)
	w.finish(ctx, logger, item.JobID, status, errText, result.Counters)

	stage := progress.StageJobDone
	if status != crawler.JobStatusSucceeded {
		stage = progress.StageJobError
	}
	w.emit(progress.Event{JobID: item.JobID, Stage: stage, Dur: time.Since(start), Note: errText})
}

func (w *Worker) emit(evt progress.Event) {
	if w.cfg.Progress == nil {
		return
	}
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	w.cfg.Progress.Emit(evt)
}

func (w *Worker) finish(
	ctx context.Context,
	logger *zap.Logger,
	jobID string,
	status crawler.JobStatus,
	errText string,
	counters crawler.JobCounters,
) {
	metrics.ObserveJob(string(status))
	if err := w.jobStore.UpdateJobStatus(ctx, jobID, status, errText, counters); err != nil {
		logger.Error("final job status update failed", zap.Error(err))
	}
}

// optionsFor overlays the per-job knobs on the worker defaults.
func (w *Worker) optionsFor(params crawler.CrawlParameters) crawler.Options {
	opts := w.cfg.Defaults
	if params.MaxDepth > 0 {
		opts.MaxDepth = params.MaxDepth
	}
	if params.FanOut > 0 {
		opts.FanOut = params.FanOut
	}
	if params.RateLimitMs > 0 {
		opts.RateLimit = time.Duration(params.RateLimitMs) * time.Millisecond
	}
	return opts
}

func deriveFinalStatus(
	jobCtx context.Context,
	result crawler.Result,
	err error,
) (crawler.JobStatus, string) {
	switch {
	case err != nil:
		return crawler.JobStatusFailed, err.Error()
	case jobCtx.Err() != nil:
		return crawler.JobStatusCanceled, "crawl canceled; partial results kept"
	case result.Counters.PagesSucceeded == 0:
		return crawler.JobStatusFailed, "no pages were fetched"
	case result.Interrupted:
		return crawler.JobStatusSucceeded, "crawl budget exhausted; partial results"
	default:
		return crawler.JobStatusSucceeded, ""
	}
}
