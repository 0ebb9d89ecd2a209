package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsRecorder wraps the Prometheus counters for cache activity.
type metricsRecorder struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	limited   prometheus.Counter
}

var (
	recorderOnce   sync.Once
	sharedRecorder *metricsRecorder
)

// newMetricsRecorder returns the process-wide recorder, registering the
// collectors on first use. Prometheus forbids duplicate registration, so
// every Cache shares one recorder.
func newMetricsRecorder() *metricsRecorder {
	recorderOnce.Do(func() {
		sharedRecorder = &metricsRecorder{
			hits: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "webmill_cache_hits_total",
				Help: "Cache hits by store tier.",
			}, []string{"tier"}),
			misses: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "webmill_cache_misses_total",
				Help: "Cache misses by store tier.",
			}, []string{"tier"}),
			evictions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "webmill_cache_evictions_total",
				Help: "Entries evicted by TTL expiry or LRU capping.",
			}, []string{"tier"}),
			limited: promauto.NewCounter(prometheus.CounterOpts{
				Name: "webmill_rate_limited_total",
				Help: "Requests rejected by the sliding-window rate limiter.",
			}),
		}
	})
	return sharedRecorder
}

func (m *metricsRecorder) hit(tier string)      { m.hits.WithLabelValues(tier).Inc() }
func (m *metricsRecorder) miss(tier string)     { m.misses.WithLabelValues(tier).Inc() }
func (m *metricsRecorder) eviction(tier string) { m.evictions.WithLabelValues(tier).Inc() }
func (m *metricsRecorder) rateLimited()         { m.limited.Inc() }
