package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-occurrences-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheHitRatio    prometheus.Gauge
	cacheLookups     *prometheus.CounterVec
	cacheInvalidated prometheus.Counter
	snapshotLoad     *prometheus.HistogramVec
	dbQueryDuration  *prometheus.HistogramVec

	cacheHitCount      uint64
	cacheMissCount     uint64
	invalidationCount  uint64
	snapshotLoadErrors uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snapshot_cache_hit_ratio",
		Help: "Ratio of snapshot cache hits to total lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_cache_lookups_total",
		Help: "Snapshot cache lookups by table and result",
	}, []string{"table", "result"})

	cacheInvalidated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_cache_invalidations_total",
		Help: "Total snapshot cache invalidations",
	})

	snapshotLoad := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapshot_load_duration_seconds",
		Help:    "Duration of snapshot loads from the occurrence store",
		Buckets: prometheus.DefBuckets,
	}, []string{"table", "outcome"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHitRatio, cacheLookups, cacheInvalidated, snapshotLoad, dbQueryDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheHitRatio:    cacheHitRatio,
		cacheLookups:     cacheLookups,
		cacheInvalidated: cacheInvalidated,
		snapshotLoad:     snapshotLoad,
		dbQueryDuration:  dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheLookup records a snapshot cache hit or miss and updates the hit ratio.
func (m *MetricsService) RecordCacheLookup(table models.Table, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	m.cacheLookups.WithLabelValues(string(table), result).Inc()
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordCacheInvalidation counts a full invalidation.
func (m *MetricsService) RecordCacheInvalidation() {
	if m == nil {
		return
	}
	m.cacheInvalidated.Inc()
	atomic.AddUint64(&m.invalidationCount, 1)
}

// ObserveSnapshotLoad records the duration of a snapshot load.
func (m *MetricsService) ObserveSnapshotLoad(table models.Table, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		atomic.AddUint64(&m.snapshotLoadErrors, 1)
	}
	m.snapshotLoad.WithLabelValues(string(table), outcome).Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Snapshot returns aggregated cache statistics.
func (m *MetricsService) Snapshot() models.CacheStats {
	if m == nil {
		return models.CacheStats{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return models.CacheStats{
		Hits:          hits,
		Misses:        misses,
		HitRatio:      ratio,
		Invalidations: atomic.LoadUint64(&m.invalidationCount),
		LoadErrors:    atomic.LoadUint64(&m.snapshotLoadErrors),
		GeneratedAt:   time.Now().UTC(),
	}
}
