// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

// DefaultUserAgent is a desktop Chrome string; several sites serve stripped
// pages to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

var _ crawler.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// outcome is filled in by the collector callbacks of a single fetch. It is
// owned by the goroutine running the visit until it is sent back to Fetch.
type outcome struct {
	response   crawler.FetchResponse
	statusCode int
	err        error
	visitErr   error
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	// Deduplication belongs to the crawl engine; clones share the visited
	// store, so revisits must be allowed here.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true

	// Clones share this collector's http.Client, so it is configured once here.
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Any failure, including a
// non-2xx status, is returned as a *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	out, err := f.runCollector(ctx, request, time.Now())
	if err != nil {
		return crawler.FetchResponse{}, &crawler.FetchError{
			URL:        request.URL,
			StatusCode: out.statusCode,
			Err:        err,
		}
	}
	return out.response, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	request crawler.FetchRequest,
	start time.Time,
	out *outcome,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.Context = ctx

	f.configureCollectorHooks(collector, request, start, out)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	out *outcome,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		out.statusCode = r.StatusCode
		out.response = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			out.statusCode = r.StatusCode
		}
		out.err = err
	})
}

// runCollector visits request.URL on its own goroutine. When ctx ends first
// the visit is abandoned and a zero outcome is returned; the goroutine keeps
// its outcome to itself.
func (f *Fetcher) runCollector(
	ctx context.Context,
	request crawler.FetchRequest,
	start time.Time,
) (outcome, error) {
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		collector := f.buildCollector(ctx, request, start, &out)
		out.visitErr = collector.Visit(request.URL)
		done <- out
	}()

	select {
	case <-ctx.Done():
		return outcome{}, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case out := <-done:
		return out, out.failure()
	}
}

func (o outcome) failure() error {
	if o.err != nil {
		return fmt.Errorf("colly response failed: %w", o.err)
	}
	if o.visitErr != nil {
		return fmt.Errorf("colly visit failed: %w", o.visitErr)
	}
	if o.statusCode < http.StatusOK || o.statusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("colly response failed: %w", errUnexpectedStatus)
	}
	return nil
}

var errUnexpectedStatus = errors.New("unexpected status")

func (f *Fetcher) copyHeaders(request crawler.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
