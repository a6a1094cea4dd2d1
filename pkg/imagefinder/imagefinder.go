// Package imagefinder is the library entry point for one-shot image
// discovery crawls.
package imagefinder

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/crawler"
	collyfetcher "github.com/JakeFAU/imagefinder/internal/fetcher/colly"
	"github.com/JakeFAU/imagefinder/internal/hash/sha256"
	goqueryparser "github.com/JakeFAU/imagefinder/internal/parser/goquery"
)

// ErrInvalidURL is returned when the start URL is not an absolute http(s)
// URL with a host.
var ErrInvalidURL = crawler.ErrInvalidURL

var defaultEngine = sync.OnceValue(func() *crawler.Engine {
	return crawler.NewEngine(
		collyfetcher.New(collyfetcher.Config{}),
		goqueryparser.New(),
		sha256.New(),
		zap.L().Named("imagefinder"),
	)
})

// Crawl returns the sorted, de-duplicated same-domain images reachable from
// startURL within maxDepth hops, following at most fanOutCap links per page
// and spacing fetches at least rateLimitMs apart. Non-positive maxDepth and
// fanOutCap fall back to the defaults; a non-positive rateLimitMs disables
// spacing. When the crawl-wide budget runs out the images found so far are
// returned without error.
func Crawl(ctx context.Context, startURL string, maxDepth, fanOutCap, rateLimitMs int) ([]string, error) {
	opts := crawler.Options{
		MaxDepth:  maxDepth,
		FanOut:    fanOutCap,
		RateLimit: time.Duration(rateLimitMs) * time.Millisecond,
	}
	if rateLimitMs <= 0 {
		opts.RateLimit = -1
	}
	result, err := defaultEngine().Crawl(ctx, startURL, opts)
	if err != nil {
		return nil, err
	}
	return result.Images, nil
}
