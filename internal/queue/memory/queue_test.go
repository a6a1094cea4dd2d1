package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/imagefinder/internal/crawler"
	"github.com/JakeFAU/imagefinder/internal/queue/memory"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue[crawler.QueueItem](1)
	result := make(chan crawler.QueueItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	job := crawler.QueueItem{JobID: "job-1"}
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.JobID != "job-1" {
			t.Fatalf("expected job-1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueuePreservesOrder(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue[crawler.CrawlTask](3)
	ctx := context.Background()
	for i, u := range []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"} {
		if err := q.Enqueue(ctx, crawler.CrawlTask{URL: u, Depth: i + 1}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected 3 buffered tasks, got %d", q.Len())
	}
	for want := 1; want <= 3; want++ {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if got.Depth != want {
			t.Fatalf("expected depth %d, got %d", want, got.Depth)
		}
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := memory.NewQueue[crawler.QueueItem](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := memory.NewQueue[crawler.QueueItem](1)
	if err := qEnqueue.Enqueue(context.Background(), crawler.QueueItem{JobID: "primed"}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, crawler.QueueItem{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue[crawler.QueueItem](1)
	q.Close()
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, memory.ErrClosed) {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	if err := q.Enqueue(context.Background(), crawler.QueueItem{}); !errors.Is(err, memory.ErrClosed) {
		t.Fatalf("expected enqueue after close to fail, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}
