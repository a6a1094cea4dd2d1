package crawler

import (
	"net/http"
	"time"
)

// JobStatus represents the lifecycle state of an asynchronous crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// CrawlTask is one unit of frontier work. Depth starts at 1 for the seed.
type CrawlTask struct {
	URL   string
	Depth int
}

// CrawlParameters captures the per-job knobs requested by a client. Zero
// values fall back to the service defaults.
type CrawlParameters struct {
	URL         string `json:"url"`
	MaxDepth    int    `json:"max_depth,omitempty"`
	FanOut      int    `json:"fan_out,omitempty"`
	RateLimitMs int    `json:"rate_limit_ms,omitempty"`
}

// Job represents the metadata kept for each submitted crawl.
type Job struct {
	ID         string          `json:"id"`
	Status     JobStatus       `json:"status"`
	Submitted  time.Time       `json:"submitted_at"`
	Started    *time.Time      `json:"started_at,omitempty"`
	Finished   *time.Time      `json:"finished_at,omitempty"`
	ErrorText  string          `json:"error_text,omitempty"`
	Parameters CrawlParameters `json:"parameters"`
	Counters   JobCounters     `json:"counters"`
}

// JobCounters tracks per-job crawl statistics.
type JobCounters struct {
	PagesSucceeded int `json:"pages_succeeded"`
	PagesFailed    int `json:"pages_failed"`
	ImagesFound    int `json:"images_found"`
	LogosSkipped   int `json:"logos_skipped"`
	Retries        int `json:"retries"`
}

// PageRecord describes one fetched page. Images counts the images this page
// added to the crawl's result; an image linked from several pages is credited
// to whichever got there first, so the split varies between runs.
type PageRecord struct {
	URL          string `json:"url"`
	Depth        int    `json:"depth"`
	StatusCode   int    `json:"status_code,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	ContentHash  string `json:"content_hash,omitempty"`
	Images       int    `json:"images"`
	LogosSkipped int    `json:"logos_skipped,omitempty"`
	Attempts     int    `json:"attempts"`
	Error        string `json:"error,omitempty"`
}

// Result is the outcome of one crawl.
type Result struct {
	StartURL    string       `json:"start_url"`
	Domain      DomainKey    `json:"domain"`
	Images      []string     `json:"images"`
	Pages       []PageRecord `json:"pages"`
	Counters    JobCounters  `json:"counters"`
	Interrupted bool         `json:"interrupted,omitempty"`
}

// JobResult is returned by the API result endpoint.
type JobResult struct {
	Job    Job          `json:"job"`
	Images []string     `json:"images"`
	Pages  []PageRecord `json:"pages"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Depth   int
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// QueueItem wraps a crawl job ready to run.
type QueueItem struct {
	JobID     string
	Params    CrawlParameters
	Attempt   int
	Submitted int64
}
