package crawler

import (
	"fmt"
	"time"
)

// Defaults applied by Options.WithDefaults.
const (
	DefaultMaxDepth  = 2
	DefaultFanOut    = 5
	DefaultWorkers   = 10
	DefaultRateLimit = 100 * time.Millisecond
	DefaultTimeout   = 60 * time.Second

	defaultBackoffInitial = 250 * time.Millisecond
	defaultBackoffMax     = 2 * time.Second
)

// Options tunes a single crawl. The zero value is valid and resolves to the
// defaults above.
type Options struct {
	// MaxDepth bounds link hops; the seed page is depth 1.
	MaxDepth int
	// FanOut caps the admissible outbound links followed per page.
	FanOut int
	// Workers sizes the fetch pool shared by every level of the crawl.
	Workers int
	// RateLimit is the minimum spacing between fetches. Negative disables it.
	RateLimit time.Duration
	// Timeout is the crawl-wide budget. Negative disables it.
	Timeout time.Duration
	// MaxRetries bounds extra attempts for transient fetch failures.
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Logo           LogoRules
	// OnPage, when set, is called with each finished page record. It runs on
	// worker goroutines and must be safe for concurrent use.
	OnPage func(PageRecord)
}

// WithDefaults returns a copy with unset fields filled in.
func (o Options) WithDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.FanOut <= 0 {
		o.FanOut = DefaultFanOut
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.RateLimit == 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = defaultBackoffInitial
	}
	if o.BackoffMax < o.BackoffInitial {
		o.BackoffMax = max(defaultBackoffMax, o.BackoffInitial)
	}
	if o.Logo.isZero() {
		o.Logo = DefaultLogoRules()
	}
	return o
}

// Validate rejects option combinations the engine cannot honour.
func (o Options) Validate() error {
	if o.MaxDepth < 1 {
		return fmt.Errorf("max depth must be >= 1")
	}
	if o.FanOut < 1 {
		return fmt.Errorf("fan out must be >= 1")
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	return nil
}
