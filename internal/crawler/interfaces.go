package crawler

import (
	"context"
	"iter"
	"time"
)

// Crawler runs a single image discovery crawl.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, opts Options) (Result, error)
}

// Fetcher fetches a URL and returns the body plus metadata. Non-2xx responses
// are reported as errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Parser turns a fetched body into a queryable document. baseURL is the URL
// the body was served from and anchors relative references.
type Parser interface {
	Parse(baseURL string, body []byte) (Document, error)
}

// Document is a parsed HTML page.
type Document interface {
	// Select lazily yields the elements matching a CSS selector in document order.
	Select(selector string) iter.Seq[Element]
}

// Element is a single node of a Document.
type Element interface {
	// Attr returns the trimmed attribute value or "".
	Attr(name string) string
	// AbsAttr resolves the attribute against the document base, or "" when
	// the attribute is missing or does not resolve.
	AbsAttr(name string) string
	// HasAncestor reports whether any ancestor matches selector.
	HasAncestor(selector string) bool
}

// JobStore persists job metadata and crawl results.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters) error
	SaveResult(ctx context.Context, jobID string, result Result) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	GetResult(ctx context.Context, jobID string) (JobResult, error)
}

// Queue provides enqueue/dequeue semantics for crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, job QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// RetryPolicy decides whether a failed fetch is retried and how long to wait.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests of page bodies.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
