package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/imagefinder/internal/crawler"
	"github.com/JakeFAU/imagefinder/internal/progress"
	"github.com/JakeFAU/imagefinder/internal/storage/memory"
)

func TestStoreSinkCollapsesPageEvents(t *testing.T) {
	t.Parallel()

	repo := &fakeRecorder{}
	sink := NewStoreSink(repo, nil)
	now := time.Now()

	batch := []progress.Event{
		{JobID: "job-a", Stage: progress.StageJobStart, TS: now},
		progress.PageEvent("job-a", crawler.PageRecord{URL: "https://example.com/", StatusCode: 200, Images: 3, Attempts: 1}, now),
		progress.PageEvent("job-b", crawler.PageRecord{URL: "https://example.org/", Error: "fetch failure", Attempts: 3}, now),
		progress.PageEvent("job-a", crawler.PageRecord{URL: "https://example.com/a", StatusCode: 200, Images: 1, LogosSkipped: 2, Attempts: 2}, now),
		{JobID: "job-a", Stage: progress.StageJobDone, TS: now, Dur: time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, []string{"job-a", "job-b"}, repo.jobs)
	require.Equal(t, crawler.JobCounters{PagesSucceeded: 2, ImagesFound: 4, LogosSkipped: 2, Retries: 1}, repo.deltas[0])
	require.Equal(t, crawler.JobCounters{PagesFailed: 1, Retries: 2}, repo.deltas[1])
	require.NoError(t, sink.Close(context.Background()))
}

func TestStoreSinkSurfacesErrors(t *testing.T) {
	t.Parallel()

	sink := NewStoreSink(&fakeRecorder{err: errors.New("boom")}, nil)
	err := sink.Consume(context.Background(), []progress.Event{
		progress.PageEvent("job", crawler.PageRecord{URL: "https://example.com/", StatusCode: 200}, time.Now()),
	})
	require.ErrorContains(t, err, "boom")

	var nilSink *StoreSink
	require.NoError(t, nilSink.Consume(context.Background(), nil))
}

func TestStoreSinkUpdatesRunningJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	require.NoError(t, store.CreateJob(ctx, crawler.Job{ID: "job", Status: crawler.JobStatusQueued}))
	require.NoError(t, store.UpdateJobStatus(ctx, "job", crawler.JobStatusRunning, "", crawler.JobCounters{}))

	sink := NewStoreSink(store, zap.NewNop())
	require.NoError(t, sink.Consume(ctx, []progress.Event{
		progress.PageEvent("job", crawler.PageRecord{URL: "https://example.com/", StatusCode: 200, Images: 2, Attempts: 1}, time.Now()),
	}))

	job, err := store.GetJob(ctx, "job")
	require.NoError(t, err)
	require.Equal(t, 1, job.Counters.PagesSucceeded)
	require.Equal(t, 2, job.Counters.ImagesFound)
}

func TestLogSinkWritesEvents(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		progress.PageEvent("job", crawler.PageRecord{URL: "https://example.com/", StatusCode: 404, Error: "fetch failure"}, now),
		{JobID: "job", Stage: progress.StageJobError, TS: now, Note: "no pages were fetched"},
	}))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 2)
	page := entries[0].ContextMap()
	require.Equal(t, "https://example.com/", page["url"])
	require.Equal(t, "4xx", page["status_class"])
	require.Equal(t, "fetch failure", page["error"])
	require.Equal(t, "no pages were fetched", entries[1].ContextMap()["note"])
}

type fakeRecorder struct {
	err    error
	jobs   []string
	deltas []crawler.JobCounters
}

func (f *fakeRecorder) AddProgress(_ context.Context, jobID string, delta crawler.JobCounters) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, jobID)
	f.deltas = append(f.deltas, delta)
	return nil
}
