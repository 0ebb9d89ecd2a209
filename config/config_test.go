package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(5), cfg.Fetcher.MaxConcurrentPages)
	assert.True(t, cfg.Fetcher.GetHeadless())
	assert.Equal(t, 30*time.Second, cfg.Fetcher.GetNavigationTimeout())
	assert.Equal(t, time.Hour, cfg.Cache.GetContentTTL())
	assert.Equal(t, 10*time.Minute, cfg.Cache.GetSweepInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.Batch.GetInterRequestDelay())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pages", func(c *Config) { c.Fetcher.MaxConcurrentPages = 0 }},
		{"empty user agent", func(c *Config) { c.Fetcher.UserAgent = "" }},
		{"bad wait policy", func(c *Config) { c.Fetcher.WaitUntil = "sometime" }},
		{"bad duration", func(c *Config) { c.Cache.ContentTTL = "one hour" }},
		{"bad heading style", func(c *Config) { c.Markdown.HeadingStyle = "underline" }},
		{"negative chunk size", func(c *Config) { c.Batch.ChunkSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webmill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fetcher:
  max_concurrent_pages: 2
  wait_until: networkidle
cache:
  content_ttl: 30m
rate_limit:
  requests_per_domain: 10
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(2), cfg.Fetcher.MaxConcurrentPages)
	assert.Equal(t, "networkidle", cfg.Fetcher.WaitUntil)
	assert.Equal(t, 30*time.Minute, cfg.Cache.GetContentTTL())
	assert.Equal(t, 10, cfg.RateLimit.RequestsPerDomain)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "webmill/1.0 (+https://github.com/c360studio/webmill)", cfg.Fetcher.UserAgent)
	assert.Equal(t, 10, cfg.Batch.ChunkSize)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestMergePrecedence(t *testing.T) {
	base := DefaultConfig()
	headlessOff := false
	base.Merge(&Config{
		Fetcher: FetcherConfig{UserAgent: "custom/2.0", Headless: &headlessOff},
		Batch:   BatchConfig{MaxConcurrent: 8},
	})

	assert.Equal(t, "custom/2.0", base.Fetcher.UserAgent)
	assert.False(t, base.Fetcher.GetHeadless())
	assert.Equal(t, 8, base.Batch.MaxConcurrent)
	// Untouched fields survive the merge.
	assert.Equal(t, int64(5), base.Fetcher.MaxConcurrentPages)
	assert.Equal(t, "1h", base.Cache.ContentTTL)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "webmill.yaml")

	cfg := DefaultConfig()
	cfg.Batch.ChunkSize = 25
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 25, loaded.Batch.ChunkSize)
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webmill.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	updated := DefaultConfig()
	updated.Batch.ChunkSize = 42
	require.NoError(t, updated.SaveToFile(path))

	select {
	case cfg := <-w.Updates():
		assert.Equal(t, 42, cfg.Batch.ChunkSize)
	case <-time.After(5 * time.Second):
		t.Fatal("no config update received")
	}
}

func TestWatcherIgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webmill.yaml")
	require.NoError(t, DefaultConfig().SaveToFile(path))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(path, []byte("fetcher:\n  max_concurrent_pages: 0\n"), 0644))

	select {
	case cfg := <-w.Updates():
		t.Fatalf("invalid config must not be published, got %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
