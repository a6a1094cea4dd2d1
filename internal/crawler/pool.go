package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/imagefinder/internal/queue/memory"
)

type taskOutcome struct {
	page     PageRecord
	children []CrawlTask
}

type taskHandler func(ctx context.Context, task CrawlTask) taskOutcome

// pool is a fixed set of workers fed from a depth-tagged task queue. One pool
// serves every level of a crawl; runLevel is the join barrier between levels.
type pool struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   *memory.Queue[CrawlTask]
	results chan taskOutcome
	wg      sync.WaitGroup
}

func newPool(ctx context.Context, workers int, handle taskHandler) *pool {
	ctx, cancel := context.WithCancel(ctx)
	p := &pool{
		ctx:     ctx,
		cancel:  cancel,
		tasks:   memory.NewQueue[CrawlTask](workers),
		results: make(chan taskOutcome, workers),
	}
	for range workers {
		p.wg.Add(1)
		go p.work(handle)
	}
	return p
}

func (p *pool) work(handle taskHandler) {
	defer p.wg.Done()
	for {
		task, err := p.tasks.Dequeue(p.ctx)
		if err != nil {
			return
		}
		out := handle(p.ctx, task)
		select {
		case p.results <- out:
		case <-p.ctx.Done():
			return
		}
	}
}

// runLevel dispatches every task of one depth and blocks until each has
// reported back. If the pool context ends first it returns the outcomes
// gathered so far together with ErrWaitInterrupted.
func (p *pool) runLevel(level []CrawlTask) ([]taskOutcome, error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for _, task := range level {
			if err := p.tasks.Enqueue(p.ctx, task); err != nil {
				return
			}
		}
	}()

	outcomes := make([]taskOutcome, 0, len(level))
	for len(outcomes) < len(level) {
		select {
		case out := <-p.results:
			outcomes = append(outcomes, out)
		case <-p.ctx.Done():
			return outcomes, fmt.Errorf("%w: %w", ErrWaitInterrupted, p.ctx.Err())
		}
	}
	return outcomes, nil
}

// close stops the workers and releases the queue.
func (p *pool) close() {
	p.cancel()
	p.wg.Wait()
	p.tasks.Close()
}
