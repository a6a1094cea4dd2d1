package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/crawler"
	"github.com/JakeFAU/imagefinder/internal/progress"
)

// ProgressRecorder applies counter deltas to a running job.
type ProgressRecorder interface {
	AddProgress(ctx context.Context, jobID string, delta crawler.JobCounters) error
}

// StoreSink collapses the page events of a batch into one counter delta per
// job and forwards it to the recorder. Lifecycle events are ignored: the
// worker writes job status itself.
type StoreSink struct {
	repo   ProgressRecorder
	logger *zap.Logger
}

var _ progress.Sink = (*StoreSink)(nil)

// NewStoreSink constructs a StoreSink for repo.
func NewStoreSink(repo ProgressRecorder, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards the collapsed deltas in first-seen job order. It stops at
// the first recorder error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	deltas := make(map[string]*crawler.JobCounters)
	var order []string
	for _, evt := range batch {
		if evt.Stage != progress.StagePageDone {
			continue
		}
		d, ok := deltas[evt.JobID]
		if !ok {
			d = &crawler.JobCounters{}
			deltas[evt.JobID] = d
			order = append(order, evt.JobID)
		}
		add(d, evt.Counters())
	}

	for _, jobID := range order {
		if err := s.repo.AddProgress(ctx, jobID, *deltas[jobID]); err != nil {
			return fmt.Errorf("add progress for job %s: %w", jobID, err)
		}
	}
	if len(order) > 0 {
		s.logger.Debug("progress recorded", zap.Int("jobs", len(order)), zap.Int("events", len(batch)))
	}
	return nil
}

// Close implements progress.Sink; there is nothing to release.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

func add(dst *crawler.JobCounters, delta crawler.JobCounters) {
	dst.PagesSucceeded += delta.PagesSucceeded
	dst.PagesFailed += delta.PagesFailed
	dst.ImagesFound += delta.ImagesFound
	dst.LogosSkipped += delta.LogosSkipped
	dst.Retries += delta.Retries
}
