package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the engine.
var (
	// ErrInvalidURL reports a start URL that cannot be parsed or has no host.
	// It is the only error that aborts a crawl.
	ErrInvalidURL = errors.New("invalid url")
	// ErrFetchFailure marks a page that could not be retrieved.
	ErrFetchFailure = errors.New("fetch failure")
	// ErrParseFailure marks a page whose body could not be parsed.
	ErrParseFailure = errors.New("parse failure")
	// ErrWaitInterrupted is logged when a level join is cut short by the
	// crawl budget or caller cancellation.
	ErrWaitInterrupted = errors.New("wait interrupted")
)

// Job store errors.
var (
	ErrJobNotFound    = errors.New("job not found")
	ErrJobExists      = errors.New("job already exists")
	ErrResultNotReady = errors.New("result not ready")
)

// FetchError describes a failed page retrieval. StatusCode is zero when no
// HTTP response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap lets errors.Is match both ErrFetchFailure and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailure}
	}
	return []error{ErrFetchFailure, e.Err}
}

func asFetchError(url string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{URL: url, Err: err}
}
