// Package config loads and validates image finder configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

// EnvPrefix namespaces environment overrides, e.g. IMAGEFINDER_CRAWLER_MAX_DEPTH.
const EnvPrefix = "IMAGEFINDER"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logo     LogoConfig     `mapstructure:"logo"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the crawl engine and the job dispatcher.
type CrawlerConfig struct {
	MaxDepth       int    `mapstructure:"max_depth"`
	FanOut         int    `mapstructure:"fan_out"`
	Workers        int    `mapstructure:"workers"`
	RateLimitMs    int    `mapstructure:"rate_limit_ms"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	QueueDepth     int    `mapstructure:"queue_depth"`
	JobWorkers     int    `mapstructure:"job_workers"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// HTTPConfig configures per-request timeout and retry backoff.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// LogoConfig tunes the logo heuristic.
type LogoConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	SizeThreshold    int      `mapstructure:"size_threshold"`
	AncestorSelector string   `mapstructure:"ancestor_selector"`
	PathKeywords     []string `mapstructure:"path_keywords"`
}

// allRulesOff reports a logo section that leaves no rule active.
func (l LogoConfig) allRulesOff() bool {
	return l.SizeThreshold <= 0 && strings.TrimSpace(l.AncestorSelector) == "" && len(l.PathKeywords) == 0
}

// ProgressConfig tunes the live job progress stream.
type ProgressConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	BufferSize     int  `mapstructure:"buffer_size"`
	MaxBatchEvents int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int  `mapstructure:"max_batch_wait_ms"`
	// LogEvents adds a debug log record per event.
	LogEvents bool `mapstructure:"log_events"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("crawler.max_depth", crawler.DefaultMaxDepth)
	v.SetDefault("crawler.fan_out", crawler.DefaultFanOut)
	v.SetDefault("crawler.workers", crawler.DefaultWorkers)
	v.SetDefault("crawler.rate_limit_ms", int(crawler.DefaultRateLimit/time.Millisecond))
	v.SetDefault("crawler.timeout_seconds", int(crawler.DefaultTimeout/time.Second))
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.job_workers", 2)
	v.SetDefault("crawler.max_retries", 0)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)

	logo := crawler.DefaultLogoRules()
	v.SetDefault("logo.enabled", true)
	v.SetDefault("logo.size_threshold", logo.SizeThreshold)
	v.SetDefault("logo.ancestor_selector", logo.AncestorSelector)
	v.SetDefault("logo.path_keywords", logo.PathKeywords)

	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait_ms", 250)
	v.SetDefault("progress.log_events", false)

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MaxDepth <= 0 {
		return fmt.Errorf("crawler.max_depth must be > 0")
	}
	if c.Crawler.FanOut <= 0 {
		return fmt.Errorf("crawler.fan_out must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.RateLimitMs < 0 {
		return fmt.Errorf("crawler.rate_limit_ms must be >= 0")
	}
	if c.Crawler.JobWorkers <= 0 {
		return fmt.Errorf("crawler.job_workers must be > 0")
	}
	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Progress.Enabled && (c.Progress.BufferSize <= 0 || c.Progress.MaxBatchEvents <= 0) {
		return fmt.Errorf("progress.buffer_size and progress.max_batch_events must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout is the per-request HTTP timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CrawlOptions converts the crawler, http and logo sections into engine
// options. A rate limit of zero disables spacing and a crawl timeout of zero
// disables the budget.
func (c Config) CrawlOptions() crawler.Options {
	opts := crawler.Options{
		MaxDepth:       c.Crawler.MaxDepth,
		FanOut:         c.Crawler.FanOut,
		Workers:        c.Crawler.Workers,
		RateLimit:      time.Duration(c.Crawler.RateLimitMs) * time.Millisecond,
		Timeout:        time.Duration(c.Crawler.TimeoutSeconds) * time.Second,
		MaxRetries:     c.Crawler.MaxRetries,
		BackoffInitial: time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
		Logo: crawler.LogoRules{
			Disabled:         !c.Logo.Enabled || c.Logo.allRulesOff(),
			SizeThreshold:    c.Logo.SizeThreshold,
			AncestorSelector: c.Logo.AncestorSelector,
			PathKeywords:     append([]string(nil), c.Logo.PathKeywords...),
		},
	}
	if c.Crawler.RateLimitMs == 0 {
		opts.RateLimit = -1
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		opts.Timeout = -1
	}
	return opts
}
