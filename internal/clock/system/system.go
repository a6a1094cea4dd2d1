// Package system provides the wall clock that stamps crawl jobs.
package system

import (
	"time"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

// Clock stamps jobs with the current UTC time, truncated to milliseconds so
// submitted_at reads the same in every API response.
type Clock struct{}

var _ crawler.Clock = Clock{}

// New returns the wall clock.
func New() Clock {
	return Clock{}
}

// Now implements crawler.Clock.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
