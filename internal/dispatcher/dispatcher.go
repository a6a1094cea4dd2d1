// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/imagefinder/internal/crawler"
	"github.com/JakeFAU/imagefinder/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue    crawler.Queue
	workers  []*worker.Worker
	registry *worker.Registry
}

// New creates a Dispatcher. registry must be the one the workers were built
// with for Cancel to reach them; nil disables cancellation.
func New(queue crawler.Queue, workers []*worker.Worker, registry *worker.Registry) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		workers:  workers,
		registry: registry,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Cancel asks the workers to stop jobID. It reports whether a running crawl
// was interrupted; a queued job is skipped when dequeued.
func (d *Dispatcher) Cancel(jobID string) bool {
	if d.registry == nil {
		return false
	}
	return d.registry.Cancel(jobID)
}
