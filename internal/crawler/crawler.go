package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/metrics"
	"github.com/JakeFAU/imagefinder/internal/policy/ratelimit"
)

// Engine runs image discovery crawls. An Engine is safe for concurrent use:
// every Crawl call allocates its own visited set, image set, rate limiter
// and worker pool.
type Engine struct {
	fetcher Fetcher
	parser  Parser
	hasher  Hasher
	logger  *zap.Logger
}

var _ Crawler = (*Engine)(nil)

// NewEngine wires an Engine. hasher may be nil, in which case page records
// carry no content hash.
func NewEngine(fetcher Fetcher, parser Parser, hasher Hasher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		fetcher: fetcher,
		parser:  parser,
		hasher:  hasher,
		logger:  logger,
	}
}

// crawlState is everything one invocation owns. It is never shared between
// crawls.
type crawlState struct {
	engine  *Engine
	start   string
	domain  DomainKey
	opts    Options
	visited *Set
	images  *Set
	limiter *ratelimit.Limiter
	logos   *LogoClassifier
	retry   RetryPolicy
	logger  *zap.Logger
}

// Crawl discovers every same-domain image reachable from startURL within
// opts.MaxDepth hops. Only an unusable start URL is reported as an error;
// page failures are recorded in Result.Pages and an expired budget or a
// canceled ctx yields the partial result with Interrupted set.
func (e *Engine) Crawl(ctx context.Context, startURL string, opts Options) (Result, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return Result{}, fmt.Errorf("crawl options: %w", err)
	}

	startURL = strings.TrimSpace(startURL)
	domain, err := NormalizeHost(startURL)
	if err != nil {
		metrics.ObserveCrawl("invalid_url", 0)
		return Result{}, err
	}
	if !isFollowable(startURL) {
		metrics.ObserveCrawl("invalid_url", 0)
		return Result{}, fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidURL, startURL)
	}
	start, err := NormalizeURL(startURL)
	if err != nil {
		metrics.ObserveCrawl("invalid_url", 0)
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	state := &crawlState{
		engine:  e,
		start:   start,
		domain:  domain,
		opts:    opts,
		visited: NewSet(),
		images:  NewSet(),
		limiter: ratelimit.New(ratelimit.Config{Interval: opts.RateLimit}),
		logos:   NewLogoClassifier(opts.Logo),
		retry:   NewExponentialRetryPolicy(opts.MaxRetries, opts.BackoffInitial, opts.BackoffMax),
		logger:  e.logger.With(zap.String("start_url", start), zap.String("domain", string(domain))),
	}
	return state.run(ctx), nil
}

func (s *crawlState) run(ctx context.Context) Result {
	began := time.Now()
	s.logger.Info("crawl started",
		zap.Int("max_depth", s.opts.MaxDepth),
		zap.Int("fan_out", s.opts.FanOut),
		zap.Duration("rate_limit", s.opts.RateLimit),
	)

	handle := s.process
	if s.opts.OnPage != nil {
		handle = func(ctx context.Context, task CrawlTask) taskOutcome {
			out := s.process(ctx, task)
			s.opts.OnPage(out.page)
			return out
		}
	}
	p := newPool(ctx, s.opts.Workers, handle)
	defer p.close()

	result := Result{StartURL: s.start, Domain: s.domain}
	s.visited.Add(s.start)
	level := []CrawlTask{{URL: s.start, Depth: 1}}

	for depth := 1; depth <= s.opts.MaxDepth && len(level) > 0; depth++ {
		outcomes, err := p.runLevel(level)
		var next []CrawlTask
		for _, out := range outcomes {
			result.Pages = append(result.Pages, out.page)
			result.Counters.LogosSkipped += out.page.LogosSkipped
			result.Counters.Retries += max(out.page.Attempts-1, 0)
			if out.page.Error != "" {
				result.Counters.PagesFailed++
			} else {
				result.Counters.PagesSucceeded++
			}
			next = append(next, out.children...)
		}
		if err != nil {
			result.Interrupted = true
			s.logger.Warn("level join interrupted; returning partial results",
				zap.Int("depth", depth),
				zap.Int("completed", len(outcomes)),
				zap.Int("scheduled", len(level)),
				zap.Error(err),
			)
			break
		}
		s.logger.Debug("level complete",
			zap.Int("depth", depth),
			zap.Int("pages", len(outcomes)),
			zap.Int("next", len(next)),
		)
		level = next
	}

	result.Images = s.images.Keys()
	result.Counters.ImagesFound = len(result.Images)
	sort.SliceStable(result.Pages, func(i, j int) bool {
		if result.Pages[i].Depth != result.Pages[j].Depth {
			return result.Pages[i].Depth < result.Pages[j].Depth
		}
		return result.Pages[i].URL < result.Pages[j].URL
	})

	outcome := "completed"
	if result.Interrupted {
		outcome = "interrupted"
	}
	elapsed := time.Since(began)
	metrics.ObserveCrawl(outcome, elapsed)
	s.logger.Info("crawl finished",
		zap.String("outcome", outcome),
		zap.Int("images", len(result.Images)),
		zap.Int("pages_succeeded", result.Counters.PagesSucceeded),
		zap.Int("pages_failed", result.Counters.PagesFailed),
		zap.Duration("elapsed", elapsed),
	)
	return result
}

// process handles one task: rate-limited fetch, parse, image admission and
// child selection. Failures are confined to the returned page record.
func (s *crawlState) process(ctx context.Context, task CrawlTask) taskOutcome {
	page := PageRecord{URL: task.URL, Depth: task.Depth}
	logger := s.logger.With(zap.String("url", task.URL), zap.Int("depth", task.Depth))

	resp, attempts, err := s.fetch(ctx, task)
	page.Attempts = attempts
	if err != nil {
		page.StatusCode = asFetchError(task.URL, err).StatusCode
		page.Error = err.Error()
		logger.Warn("fetch failed", zap.Int("attempts", attempts), zap.Error(err))
		metrics.ObservePage(task.URL, "failure", 0)
		return taskOutcome{page: page}
	}
	page.StatusCode = resp.StatusCode
	page.DurationMs = resp.Duration.Milliseconds()
	if s.engine.hasher != nil {
		if sum, hashErr := s.engine.hasher.Hash(resp.Body); hashErr == nil {
			page.ContentHash = sum
		}
	}

	base := resp.URL
	if base == "" {
		base = task.URL
	}
	doc, err := s.engine.parser.Parse(base, resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrParseFailure, task.URL, err)
		page.Error = err.Error()
		logger.Warn("parse failed", zap.Error(err))
		metrics.ObservePage(task.URL, "failure", len(resp.Body))
		return taskOutcome{page: page}
	}

	admitted, logos := s.admitImages(doc)
	page.Images = admitted
	page.LogosSkipped = logos
	out := taskOutcome{page: page}
	if task.Depth < s.opts.MaxDepth {
		out.children = s.admitLinks(doc, task.Depth+1)
	}

	metrics.ObservePage(task.URL, "success", len(resp.Body))
	metrics.ObserveImages(task.URL, admitted)
	metrics.ObserveLogosSkipped(task.URL, logos)
	logger.Debug("page processed",
		zap.Int("status", resp.StatusCode),
		zap.Int("images", admitted),
		zap.Int("logos_skipped", logos),
		zap.Int("children", len(out.children)),
	)
	return out
}

// fetch waits on the crawl's limiter before every attempt and retries
// transient failures per the retry policy. It returns the attempts made.
func (s *crawlState) fetch(ctx context.Context, task CrawlTask) (FetchResponse, int, error) {
	for attempt := 1; ; attempt++ {
		if err := s.limiter.Wait(ctx, string(s.domain)); err != nil {
			return FetchResponse{}, attempt - 1, asFetchError(task.URL, err)
		}
		resp, err := s.engine.fetcher.Fetch(ctx, FetchRequest{URL: task.URL, Depth: task.Depth})
		if err == nil {
			return resp, attempt, nil
		}
		if !s.retry.ShouldRetry(err, attempt) {
			return FetchResponse{}, attempt, asFetchError(task.URL, err)
		}
		delay := s.retry.Backoff(attempt)
		metrics.ObserveRetry(task.URL)
		s.logger.Debug("retrying fetch",
			zap.String("url", task.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if pauseErr := pause(ctx, delay); pauseErr != nil {
			return FetchResponse{}, attempt, asFetchError(task.URL, errors.Join(err, pauseErr))
		}
	}
}

// admitImages adds the page's same-domain, non-logo images to the image set.
// It returns how many were new and how many were rejected as logos.
func (s *crawlState) admitImages(doc Document) (admitted, logos int) {
	for candidate := range ImageCandidates(doc) {
		if !SameOrigin(candidate.URL, s.domain) {
			continue
		}
		if s.logos.IsLikelyLogo(candidate.Element, candidate.URL) {
			logos++
			continue
		}
		if s.images.Add(candidate.URL) {
			admitted++
		}
	}
	return admitted, logos
}

// admitLinks selects up to FanOut children. The cap counts links that
// survived the scheme, domain and visited filters.
func (s *crawlState) admitLinks(doc Document, depth int) []CrawlTask {
	var children []CrawlTask
	for link := range OutboundLinks(doc) {
		if len(children) >= s.opts.FanOut {
			break
		}
		if !SameOrigin(link, s.domain) {
			continue
		}
		key, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		if !s.visited.Add(key) {
			continue
		}
		children = append(children, CrawlTask{URL: key, Depth: depth})
	}
	return children
}
