package worker

import (
	"context"
	"sync"
)

// Registry tracks cancel functions of running jobs and remembers jobs that
// were canceled before a worker picked them up. It is shared by every worker
// and by the dispatcher.
type Registry struct {
	mu       sync.Mutex
	running  map[string]context.CancelFunc
	canceled map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		running:  make(map[string]context.CancelFunc),
		canceled: make(map[string]struct{}),
	}
}

// Cancel stops jobID if it is running, or marks it so a worker skips it. It
// reports whether a running crawl was interrupted.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.running[jobID]; ok {
		cancel()
		return true
	}
	r.canceled[jobID] = struct{}{}
	return false
}

// Running reports how many jobs currently hold a cancel func.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// begin registers jobID and derives its context. skip is true when the job
// was canceled while queued; release must be called either way.
func (r *Registry) begin(parent context.Context, jobID string) (ctx context.Context, release func(), skip bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.canceled[jobID]; ok {
		delete(r.canceled, jobID)
		return parent, func() {}, true
	}
	ctx, cancel := context.WithCancel(parent)
	r.running[jobID] = cancel
	return ctx, func() {
		r.mu.Lock()
		delete(r.running, jobID)
		r.mu.Unlock()
		cancel()
	}, false
}
