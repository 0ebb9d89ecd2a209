// Package config provides configuration loading and management for Webmill.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Webmill configuration.
type Config struct {
	Fetcher   FetcherConfig   `yaml:"fetcher"`
	Extract   ExtractConfig   `yaml:"extract"`
	Markdown  MarkdownConfig  `yaml:"markdown"`
	Cache     CacheConfig     `yaml:"cache"`
	Batch     BatchConfig     `yaml:"batch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	NATS      NATSConfig      `yaml:"nats"`
}

// FetcherConfig configures the headless browser.
type FetcherConfig struct {
	// MaxConcurrentPages caps simultaneously open browser tabs
	MaxConcurrentPages int64 `yaml:"max_concurrent_pages"`
	// UserAgent is sent on every navigation
	UserAgent string `yaml:"user_agent"`
	// ViewportWidth and ViewportHeight fix the emulated viewport
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`
	// Headless disables the visible browser window (default: true)
	Headless *bool `yaml:"headless"`
	// NavigationTimeout bounds a single fetch, e.g. "30s"
	NavigationTimeout string `yaml:"navigation_timeout"`
	// WaitUntil is the default navigation wait policy: load,
	// domcontentloaded, or networkidle
	WaitUntil string `yaml:"wait_until"`
}

// ExtractConfig configures content extraction.
type ExtractConfig struct {
	// RemoveSelectors are extra CSS selectors stripped before scoring
	RemoveSelectors []string `yaml:"remove_selectors"`
	// ContentSelectors override the default candidate selector list
	ContentSelectors []string `yaml:"content_selectors"`
}

// MarkdownConfig configures the HTML to Markdown conversion.
type MarkdownConfig struct {
	// HeadingStyle is "atx" (default) or "setext"
	HeadingStyle string `yaml:"heading_style"`
	// BulletMarker is the unordered list marker (default: "-")
	BulletMarker string `yaml:"bullet_marker"`
	// LinkStyle is "inlined" (default) or "referenced"
	LinkStyle string `yaml:"link_style"`
}

// CacheConfig configures the in-memory stores.
type CacheConfig struct {
	// ContentTTL is how long converted documents stay cached, e.g. "1h"
	ContentTTL string `yaml:"content_ttl"`
	// MetadataTTL is how long metadata entries stay cached, e.g. "24h"
	MetadataTTL string `yaml:"metadata_ttl"`
	// ContentMaxKeys caps the content store entry count
	ContentMaxKeys int `yaml:"content_max_keys"`
	// MetadataMaxKeys caps the metadata store entry count
	MetadataMaxKeys int `yaml:"metadata_max_keys"`
	// SweepInterval is how often expired entries are collected, e.g. "10m"
	SweepInterval string `yaml:"sweep_interval"`
}

// BatchConfig configures batch orchestration.
type BatchConfig struct {
	// MaxConcurrent caps concurrent pipeline runs within a chunk
	MaxConcurrent int `yaml:"max_concurrent"`
	// ChunkSize is the number of URLs processed per chunk
	ChunkSize int `yaml:"chunk_size"`
	// InterRequestDelay is the politeness delay between request starts, e.g. "200ms"
	InterRequestDelay string `yaml:"inter_request_delay"`
	// InterChunkDelay is the politeness delay between chunks, e.g. "1s"
	InterChunkDelay string `yaml:"inter_chunk_delay"`
	// MaxRetries bounds retry sessions per URL
	MaxRetries int `yaml:"max_retries"`
}

// RateLimitConfig configures per-domain request limiting.
type RateLimitConfig struct {
	// RequestsPerDomain is the max requests per domain per window
	// (0 disables limiting)
	RequestsPerDomain int `yaml:"requests_per_domain"`
	// Window is the sliding window span, e.g. "1m"
	Window string `yaml:"window"`
}

// NATSConfig configures the NATS connection for the stream processor.
type NATSConfig struct {
	// URL is the NATS server URL (empty = processor disabled)
	URL string `yaml:"url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	headless := true
	return &Config{
		Fetcher: FetcherConfig{
			MaxConcurrentPages: 5,
			UserAgent:          "webmill/1.0 (+https://github.com/c360studio/webmill)",
			ViewportWidth:      1280,
			ViewportHeight:     800,
			Headless:           &headless,
			NavigationTimeout:  "30s",
			WaitUntil:          "load",
		},
		Markdown: MarkdownConfig{
			HeadingStyle: "atx",
			BulletMarker: "-",
			LinkStyle:    "inlined",
		},
		Cache: CacheConfig{
			ContentTTL:      "1h",
			MetadataTTL:     "24h",
			ContentMaxKeys:  1000,
			MetadataMaxKeys: 500,
			SweepInterval:   "10m",
		},
		Batch: BatchConfig{
			MaxConcurrent:     3,
			ChunkSize:         10,
			InterRequestDelay: "200ms",
			InterChunkDelay:   "1s",
			MaxRetries:        3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerDomain: 0,
			Window:            "1m",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Fetcher.MaxConcurrentPages <= 0 {
		return fmt.Errorf("fetcher.max_concurrent_pages must be positive")
	}
	if c.Fetcher.UserAgent == "" {
		return fmt.Errorf("fetcher.user_agent is required")
	}
	switch c.Fetcher.WaitUntil {
	case "", "load", "domcontentloaded", "networkidle":
	default:
		return fmt.Errorf("fetcher.wait_until must be load, domcontentloaded, or networkidle")
	}
	for _, field := range []struct {
		name, value string
	}{
		{"fetcher.navigation_timeout", c.Fetcher.NavigationTimeout},
		{"cache.content_ttl", c.Cache.ContentTTL},
		{"cache.metadata_ttl", c.Cache.MetadataTTL},
		{"cache.sweep_interval", c.Cache.SweepInterval},
		{"batch.inter_request_delay", c.Batch.InterRequestDelay},
		{"batch.inter_chunk_delay", c.Batch.InterChunkDelay},
		{"rate_limit.window", c.RateLimit.Window},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", field.name, field.value)
		}
	}
	if c.Batch.MaxConcurrent < 0 || c.Batch.ChunkSize < 0 {
		return fmt.Errorf("batch settings must not be negative")
	}
	switch c.Markdown.HeadingStyle {
	case "", "atx", "setext":
	default:
		return fmt.Errorf("markdown.heading_style must be atx or setext")
	}
	return nil
}

// parseDurationOrDefault parses a duration string and returns the default
// if empty or invalid.
func parseDurationOrDefault(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// GetNavigationTimeout returns the fetch timeout as a duration.
func (c FetcherConfig) GetNavigationTimeout() time.Duration {
	return parseDurationOrDefault(c.NavigationTimeout, 30*time.Second)
}

// GetHeadless returns the headless setting, defaulting to true.
func (c FetcherConfig) GetHeadless() bool {
	if c.Headless == nil {
		return true
	}
	return *c.Headless
}

// GetContentTTL returns the content TTL as a duration.
func (c CacheConfig) GetContentTTL() time.Duration {
	return parseDurationOrDefault(c.ContentTTL, 1*time.Hour)
}

// GetMetadataTTL returns the metadata TTL as a duration.
func (c CacheConfig) GetMetadataTTL() time.Duration {
	return parseDurationOrDefault(c.MetadataTTL, 24*time.Hour)
}

// GetSweepInterval returns the sweep interval as a duration.
func (c CacheConfig) GetSweepInterval() time.Duration {
	return parseDurationOrDefault(c.SweepInterval, 10*time.Minute)
}

// GetInterRequestDelay returns the intra-chunk delay as a duration.
func (c BatchConfig) GetInterRequestDelay() time.Duration {
	return parseDurationOrDefault(c.InterRequestDelay, 200*time.Millisecond)
}

// GetInterChunkDelay returns the inter-chunk delay as a duration.
func (c BatchConfig) GetInterChunkDelay() time.Duration {
	return parseDurationOrDefault(c.InterChunkDelay, 1*time.Second)
}

// GetWindow returns the rate-limit window as a duration.
func (c RateLimitConfig) GetWindow() time.Duration {
	return parseDurationOrDefault(c.Window, 1*time.Minute)
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Fetcher
	if other.Fetcher.MaxConcurrentPages != 0 {
		c.Fetcher.MaxConcurrentPages = other.Fetcher.MaxConcurrentPages
	}
	if other.Fetcher.UserAgent != "" {
		c.Fetcher.UserAgent = other.Fetcher.UserAgent
	}
	if other.Fetcher.ViewportWidth != 0 {
		c.Fetcher.ViewportWidth = other.Fetcher.ViewportWidth
	}
	if other.Fetcher.ViewportHeight != 0 {
		c.Fetcher.ViewportHeight = other.Fetcher.ViewportHeight
	}
	if other.Fetcher.Headless != nil {
		c.Fetcher.Headless = other.Fetcher.Headless
	}
	if other.Fetcher.NavigationTimeout != "" {
		c.Fetcher.NavigationTimeout = other.Fetcher.NavigationTimeout
	}
	if other.Fetcher.WaitUntil != "" {
		c.Fetcher.WaitUntil = other.Fetcher.WaitUntil
	}

	// Extract
	if len(other.Extract.RemoveSelectors) > 0 {
		c.Extract.RemoveSelectors = other.Extract.RemoveSelectors
	}
	if len(other.Extract.ContentSelectors) > 0 {
		c.Extract.ContentSelectors = other.Extract.ContentSelectors
	}

	// Markdown
	if other.Markdown.HeadingStyle != "" {
		c.Markdown.HeadingStyle = other.Markdown.HeadingStyle
	}
	if other.Markdown.BulletMarker != "" {
		c.Markdown.BulletMarker = other.Markdown.BulletMarker
	}
	if other.Markdown.LinkStyle != "" {
		c.Markdown.LinkStyle = other.Markdown.LinkStyle
	}

	// Cache
	if other.Cache.ContentTTL != "" {
		c.Cache.ContentTTL = other.Cache.ContentTTL
	}
	if other.Cache.MetadataTTL != "" {
		c.Cache.MetadataTTL = other.Cache.MetadataTTL
	}
	if other.Cache.ContentMaxKeys != 0 {
		c.Cache.ContentMaxKeys = other.Cache.ContentMaxKeys
	}
	if other.Cache.MetadataMaxKeys != 0 {
		c.Cache.MetadataMaxKeys = other.Cache.MetadataMaxKeys
	}
	if other.Cache.SweepInterval != "" {
		c.Cache.SweepInterval = other.Cache.SweepInterval
	}

	// Batch
	if other.Batch.MaxConcurrent != 0 {
		c.Batch.MaxConcurrent = other.Batch.MaxConcurrent
	}
	if other.Batch.ChunkSize != 0 {
		c.Batch.ChunkSize = other.Batch.ChunkSize
	}
	if other.Batch.InterRequestDelay != "" {
		c.Batch.InterRequestDelay = other.Batch.InterRequestDelay
	}
	if other.Batch.InterChunkDelay != "" {
		c.Batch.InterChunkDelay = other.Batch.InterChunkDelay
	}
	if other.Batch.MaxRetries != 0 {
		c.Batch.MaxRetries = other.Batch.MaxRetries
	}

	// Rate limit
	if other.RateLimit.RequestsPerDomain != 0 {
		c.RateLimit.RequestsPerDomain = other.RateLimit.RequestsPerDomain
	}
	if other.RateLimit.Window != "" {
		c.RateLimit.Window = other.RateLimit.Window
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
}
