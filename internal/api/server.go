package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/config"
	"github.com/JakeFAU/imagefinder/internal/crawler"
	"github.com/JakeFAU/imagefinder/internal/dispatcher"
	"github.com/JakeFAU/imagefinder/internal/logging"
	"github.com/JakeFAU/imagefinder/internal/metrics"
)

const (
	enqueueTimeout = 5 * time.Second
	// requestSlack is added to the crawl budget for the request timeout so a
	// synchronous crawl can still write its partial result.
	requestSlack = 15 * time.Second
)

// Server wires HTTP handlers to the crawl engine, dispatcher and stores.
type Server struct {
	router     chi.Router
	crawler    crawler.Crawler
	jobStore   crawler.JobStore
	dispatcher *dispatcher.Dispatcher
	idGen      crawler.IDGenerator
	clock      crawler.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	c crawler.Crawler,
	jobStore crawler.JobStore,
	dispatcher *dispatcher.Dispatcher,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		crawler:    c,
		jobStore:   jobStore,
		dispatcher: dispatcher,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware(logger))
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(s.requestTimeout()))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(corsMiddleware)
		r.Options("/main", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/main", s.crawlSync)
	})

	r.Route("/v1/crawls", func(r chi.Router) {
		r.Post("/", s.submitCrawl)
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/status", s.getJobStatus)
			r.Get("/result", s.getJobResult)
			r.Post("/cancel", s.cancelJob)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestTimeout() time.Duration {
	budget := time.Duration(s.cfg.Crawler.TimeoutSeconds) * time.Second
	if budget <= 0 {
		budget = crawler.DefaultTimeout
	}
	return budget + requestSlack
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.crawler == nil || s.jobStore == nil || s.dispatcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// crawlSync runs one crawl inside the request and answers with the sorted
// image list. An empty url yields an empty list.
func (s *Server) crawlSync(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	raw := strings.TrimSpace(r.FormValue("url"))
	if raw == "" {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	params, err := parametersFromForm(raw, r.Form)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.crawler == nil {
		writeError(w, http.StatusServiceUnavailable, "crawler not configured")
		return
	}

	logger := logging.FromContext(r.Context(), s.logger)
	result, err := s.crawler.Crawl(r.Context(), raw, s.optionsFor(params))
	if err != nil {
		if errors.Is(err, crawler.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, "invalid url")
			return
		}
		logger.Error("synchronous crawl failed", zap.String("url", raw), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "crawl failed")
		return
	}
	images := result.Images
	if images == nil {
		images = []string{}
	}
	writeJSON(w, http.StatusOK, images)
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var params crawler.CrawlParameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	params.URL = strings.TrimSpace(params.URL)
	if err := validateParameters(params); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, err := s.enqueueJob(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	result, err := s.jobStore.GetResult(r.Context(), jobID)
	switch {
	case errors.Is(err, crawler.ErrResultNotReady):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "result not ready",
			"status": string(result.Job.Status),
		})
		return
	case err != nil:
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	switch job.Status {
	case crawler.JobStatusSucceeded, crawler.JobStatusFailed, crawler.JobStatusCanceled:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "job already finished", "status": string(job.Status)})
		return
	}

	status := "canceling"
	if !s.dispatcher.Cancel(jobID) {
		status = string(crawler.JobStatusCanceled)
		if err := s.jobStore.UpdateJobStatus(
			r.Context(),
			jobID,
			crawler.JobStatusCanceled,
			"canceled via API",
			job.Counters,
		); err != nil {
			writeError(w, http.StatusInternalServerError, "cancel failed")
			return
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": status})
}

func (s *Server) enqueueJob(ctx context.Context, params crawler.CrawlParameters) (string, error) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := crawler.Job{
		ID:         jobID,
		Status:     crawler.JobStatusQueued,
		Submitted:  now,
		Parameters: params,
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	item := crawler.QueueItem{
		JobID:     jobID,
		Params:    params,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		if updateErr := s.jobStore.UpdateJobStatus(
			ctx, jobID, crawler.JobStatusFailed, "enqueue failed", crawler.JobCounters{},
		); updateErr != nil {
			logging.FromContext(ctx, s.logger).Error("mark job failed", zap.String("job_id", jobID), zap.Error(updateErr))
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	logging.FromContext(ctx, s.logger).Info("crawl job queued",
		zap.String("job_id", jobID),
		zap.String("url", params.URL),
	)
	return jobID, nil
}

// optionsFor overlays request knobs on the configured defaults.
func (s *Server) optionsFor(params crawler.CrawlParameters) crawler.Options {
	opts := s.cfg.CrawlOptions()
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

func validateParameters(params crawler.CrawlParameters) error {
	if params.URL == "" {
		return errors.New("url required")
	}
	if _, err := crawler.NormalizeHost(params.URL); err != nil {
		return errors.New("invalid url")
	}
	if u, err := url.Parse(params.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("invalid url")
	}
	if params.MaxDepth < 0 || params.FanOut < 0 || params.RateLimitMs < 0 {
		return errors.New("max_depth, fan_out and rate_limit_ms must be >= 0")
	}
	return nil
}

func parametersFromForm(raw string, form url.Values) (crawler.CrawlParameters, error) {
	params := crawler.CrawlParameters{URL: raw}
	for key, dst := range map[string]*int{
		"max_depth":     &params.MaxDepth,
		"fan_out":       &params.FanOut,
		"rate_limit_ms": &params.RateLimitMs,
	} {
		v := strings.TrimSpace(form.Get(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return crawler.CrawlParameters{}, fmt.Errorf("%s must be a non-negative integer", key)
		}
		*dst = n
	}
	return params, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
