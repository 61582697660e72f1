package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/tutor-match-api/internal/ledger"
	"github.com/noah-isme/tutor-match-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	rankingDuration   prometheus.Histogram
	rankingCandidates prometheus.Histogram
	loadChanges       *prometheus.CounterVec
	assignmentOps     *prometheus.CounterVec
	loadDiscrepancies prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	rankingCount         uint64
	rankingDurationTotal uint64
	loadChangeCount      uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	rankingDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tutor_ranking_duration_seconds",
		Help:    "Time spent ranking candidate tutors",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})

	rankingCandidates := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tutor_ranking_candidates",
		Help:    "Number of tutors considered per ranking",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	loadChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tutor_load_changes_total",
		Help: "Tutee counter adjustments applied, by operation and direction",
	}, []string{"operation", "direction"})

	assignmentOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_assignment_operations_total",
		Help: "Session assignment operations by operation and outcome",
	}, []string{"operation", "outcome"})

	loadDiscrepancies := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tutor_load_discrepancies",
		Help: "Tutors whose stored counter disagreed with assignments at the last audit",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		rankingDuration, rankingCandidates, loadChanges, assignmentOps, loadDiscrepancies, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		rankingDuration:   rankingDuration,
		rankingCandidates: rankingCandidates,
		loadChanges:       loadChanges,
		assignmentOps:     assignmentOps,
		loadDiscrepancies: loadDiscrepancies,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveRanking records one ranking pass over candidates tutors.
func (m *MetricsService) ObserveRanking(candidates int, duration time.Duration) {
	if m == nil {
		return
	}
	m.rankingDuration.Observe(duration.Seconds())
	m.rankingCandidates.Observe(float64(candidates))
	atomic.AddUint64(&m.rankingCount, 1)
	atomic.AddUint64(&m.rankingDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordLoadChanges counts applied counter adjustments for an operation.
func (m *MetricsService) RecordLoadChanges(operation string, deltas []ledger.Delta) {
	if m == nil {
		return
	}
	for _, d := range deltas {
		direction := "increment"
		n := d.Change
		if n < 0 {
			direction = "decrement"
			n = -n
		}
		m.loadChanges.WithLabelValues(operation, direction).Add(float64(n))
		atomic.AddUint64(&m.loadChangeCount, uint64(n))
	}
}

// RecordAssignment counts an assignment operation and whether it succeeded.
func (m *MetricsService) RecordAssignment(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.assignmentOps.WithLabelValues(operation, outcome).Inc()
}

// SetLoadDiscrepancies publishes the result of the latest audit.
func (m *MetricsService) SetLoadDiscrepancies(n int) {
	if m == nil {
		return
	}
	m.loadDiscrepancies.Set(float64(n))
}

// Snapshot returns aggregated metrics suitable for the admin API.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	rankings := atomic.LoadUint64(&m.rankingCount)
	rankDuration := atomic.LoadUint64(&m.rankingDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgRankingMs float64
	if rankings > 0 {
		avgRankingMs = float64(rankDuration) / float64(rankings) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		RankingsTotal:            rankings,
		AverageRankingDurationMs: avgRankingMs,
		LoadChangesTotal:         atomic.LoadUint64(&m.loadChangeCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
