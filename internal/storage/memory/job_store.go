// Package memory keeps crawl jobs and their results in process memory.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

// JobStore provides an in-memory implementation of crawler.JobStore. Jobs
// live for the lifetime of the process.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]crawler.Job
	results map[string]crawler.Result
}

var _ crawler.JobStore = (*JobStore)(nil)

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:    make(map[string]crawler.Job),
		results: make(map[string]crawler.Result),
	}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return crawler.ErrJobExists
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status and counters for a job.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status crawler.JobStatus,
	errText string,
	counters crawler.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.ErrJobNotFound
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := time.Now().UTC()
	if status == crawler.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if isTerminal(status) {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// AddProgress adds delta to the counters of a running job. Deltas that arrive
// after the job left the running state are dropped, since the final status
// update carries the authoritative counters.
func (s *JobStore) AddProgress(_ context.Context, jobID string, delta crawler.JobCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.ErrJobNotFound
	}
	if job.Status != crawler.JobStatusRunning {
		return nil
	}
	job.Counters.PagesSucceeded += delta.PagesSucceeded
	job.Counters.PagesFailed += delta.PagesFailed
	job.Counters.ImagesFound += delta.ImagesFound
	job.Counters.LogosSkipped += delta.LogosSkipped
	job.Counters.Retries += delta.Retries
	s.jobs[jobID] = job
	return nil
}

// SaveResult stores the crawl result for a job, replacing any earlier one.
func (s *JobStore) SaveResult(_ context.Context, jobID string, result crawler.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return crawler.ErrJobNotFound
	}
	result.Images = slices.Clone(result.Images)
	result.Pages = slices.Clone(result.Pages)
	s.results[jobID] = result
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, crawler.ErrJobNotFound
	}
	return job, nil
}

// GetResult returns the job together with its images and page records. It
// fails with crawler.ErrResultNotReady until a result has been saved.
func (s *JobStore) GetResult(_ context.Context, jobID string) (crawler.JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.JobResult{}, crawler.ErrJobNotFound
	}
	result, ok := s.results[jobID]
	if !ok {
		return crawler.JobResult{Job: job}, crawler.ErrResultNotReady
	}
	images := slices.Clone(result.Images)
	if images == nil {
		images = []string{}
	}
	return crawler.JobResult{
		Job:    job,
		Images: images,
		Pages:  slices.Clone(result.Pages),
	}, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status crawler.JobStatus) bool {
	switch status {
	case crawler.JobStatusSucceeded, crawler.JobStatusFailed, crawler.JobStatusCanceled:
		return true
	default:
		return false
	}
}
