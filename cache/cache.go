// Package cache provides the in-memory stores backing the conversion
// pipeline: a content store, a metadata store, and a rate-limit window
// store. Content and metadata entries expire by TTL, checked lazily on
// access and by a periodic sweep, with least-recently-accessed eviction
// once a store exceeds its entry cap.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// Config controls store sizing and expiry behavior.
type Config struct {
	ContentTTL      time.Duration `yaml:"content_ttl"`
	MetadataTTL     time.Duration `yaml:"metadata_ttl"`
	ContentMaxKeys  int           `yaml:"content_max_keys"`
	MetadataMaxKeys int           `yaml:"metadata_max_keys"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns the standard cache configuration.
func DefaultConfig() Config {
	return Config{
		ContentTTL:      1 * time.Hour,
		MetadataTTL:     24 * time.Hour,
		ContentMaxKeys:  1000,
		MetadataMaxKeys: 500,
		SweepInterval:   10 * time.Minute,
	}
}

// GetContentTTL returns the content TTL or its default.
func (c Config) GetContentTTL() time.Duration {
	if c.ContentTTL <= 0 {
		return 1 * time.Hour
	}
	return c.ContentTTL
}

// GetMetadataTTL returns the metadata TTL or its default.
func (c Config) GetMetadataTTL() time.Duration {
	if c.MetadataTTL <= 0 {
		return 24 * time.Hour
	}
	return c.MetadataTTL
}

// GetSweepInterval returns the sweep interval or its default.
func (c Config) GetSweepInterval() time.Duration {
	if c.SweepInterval <= 0 {
		return 10 * time.Minute
	}
	return c.SweepInterval
}

type entry struct {
	key        string
	value      any
	size       int
	createdAt  time.Time
	expiresAt  time.Time
	lruElement *list.Element
}

// store is a single TTL key-value store with LRU capping. All methods hold
// the mutex only for map and list manipulation, never across I/O.
type store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	lru      *list.List // front = most recently accessed
	maxKeys  int
	hits     uint64
	misses   uint64
	now      func() time.Time
	recorder *metricsRecorder
	tier     string
}

func newStore(tier string, maxKeys int, rec *metricsRecorder) *store {
	return &store{
		entries:  make(map[string]*entry),
		lru:      list.New(),
		maxKeys:  maxKeys,
		now:      time.Now,
		recorder: rec,
		tier:     tier,
	}
}

func (s *store) set(key string, value any, size int, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.entries[key]; ok {
		existing.value = value
		existing.size = size
		existing.createdAt = now
		existing.expiresAt = now.Add(ttl)
		s.lru.MoveToFront(existing.lruElement)
		return
	}

	e := &entry{key: key, value: value, size: size, createdAt: now, expiresAt: now.Add(ttl)}
	e.lruElement = s.lru.PushFront(e)
	s.entries[key] = e

	if s.maxKeys > 0 && len(s.entries) > s.maxKeys {
		s.evictOldest()
	}
}

// evictOldest removes the least-recently-accessed entry. Caller holds mu.
func (s *store) evictOldest() {
	oldest := s.lru.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	s.lru.Remove(oldest)
	delete(s.entries, e.key)
	s.recorder.eviction(s.tier)
}

func (s *store) get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		s.recorder.miss(s.tier)
		return nil, false
	}
	if s.now().After(e.expiresAt) {
		s.lru.Remove(e.lruElement)
		delete(s.entries, key)
		s.misses++
		s.recorder.miss(s.tier)
		s.recorder.eviction(s.tier)
		return nil, false
	}
	s.lru.MoveToFront(e.lruElement)
	s.hits++
	s.recorder.hit(s.tier)
	return e.value, true
}

func (s *store) delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.lru.Remove(e.lruElement)
	delete(s.entries, key)
	return true
}

func (s *store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			s.lru.Remove(e.lruElement)
			delete(s.entries, key)
			removed++
			s.recorder.eviction(s.tier)
		}
	}
	return removed
}

func (s *store) stats() (keys int, bytes int64, hits, misses uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		bytes += int64(e.size)
	}
	return len(s.entries), bytes, s.hits, s.misses
}

// Cache bundles the three stores with a shared sweep loop.
type Cache struct {
	cfg      Config
	logger   *slog.Logger
	content  *store
	metadata *store
	limiter  *rateLimiter
	recorder *metricsRecorder

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates the cache stores and starts the periodic sweep.
func New(cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	rec := newMetricsRecorder()
	c := &Cache{
		cfg:      cfg,
		logger:   logger.With("component", "cache"),
		content:  newStore("content", cfg.ContentMaxKeys, rec),
		metadata: newStore("metadata", cfg.MetadataMaxKeys, rec),
		limiter:  newRateLimiter(),
		recorder: rec,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *Cache) sweepLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.GetSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := c.content.sweep() + c.metadata.sweep()
			pruned := c.limiter.prune()
			if removed > 0 || pruned > 0 {
				c.logger.Debug("cache sweep completed",
					"expired_entries", removed,
					"pruned_windows", pruned)
			}
		case <-c.stopCh:
			return
		}
	}
}

// Close stops the sweep loop. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.done
}

// CacheContent stores a pipeline result under the derived key. An explicit
// ttl of zero uses the configured content TTL.
func (c *Cache) CacheContent(rawURL string, opts KeyOptions, value any, size int, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.cfg.GetContentTTL()
	}
	c.content.set(Key(rawURL, opts), value, size, ttl)
	return true
}

// GetContent returns the cached pipeline result for a URL, or false on miss
// or expiry.
func (c *Cache) GetContent(rawURL string, opts KeyOptions) (any, bool) {
	return c.content.get(Key(rawURL, opts))
}

// Invalidate removes the entry for a URL. Returns whether an entry existed.
func (c *Cache) Invalidate(rawURL string, opts KeyOptions) bool {
	return c.content.delete(Key(rawURL, opts))
}

// CacheMetadata stores an arbitrary value under a caller-supplied key.
func (c *Cache) CacheMetadata(key string, value any, size int, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.GetMetadataTTL()
	}
	c.metadata.set(key, value, size, ttl)
}

// GetMetadata returns a metadata value, or false on miss or expiry.
func (c *Cache) GetMetadata(key string) (any, bool) {
	return c.metadata.get(key)
}

// CheckRateLimit records a request for identifier and reports whether it
// exceeds limit within the sliding window.
func (c *Cache) CheckRateLimit(identifier string, limit int, window time.Duration) RateLimitResult {
	res := c.limiter.check(identifier, limit, window)
	if res.IsLimited {
		c.recorder.rateLimited()
	}
	return res
}

// Health reports store sizing and hit rates for operational monitoring.
type Health struct {
	Status           string             `json:"status"`
	MemoryUsageBytes int64              `json:"memoryUsageBytes"`
	KeyCounts        map[string]int     `json:"keyCounts"`
	HitRates         map[string]float64 `json:"hitRates"`
}

// Health returns a point-in-time snapshot of all stores.
func (c *Cache) Health() Health {
	contentKeys, contentBytes, contentHits, contentMisses := c.content.stats()
	metaKeys, metaBytes, metaHits, metaMisses := c.metadata.stats()

	return Health{
		Status:           "healthy",
		MemoryUsageBytes: contentBytes + metaBytes,
		KeyCounts: map[string]int{
			"content":   contentKeys,
			"metadata":  metaKeys,
			"ratelimit": c.limiter.windowCount(),
		},
		HitRates: map[string]float64{
			"content":  hitRate(contentHits, contentMisses),
			"metadata": hitRate(metaHits, metaMisses),
		},
	}
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
