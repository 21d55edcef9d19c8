package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/dat-progress-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	cacheLatency        prometheus.Observer
	cacheWrite          prometheus.Observer
	cacheHitRatio       prometheus.Gauge
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	blobDuration        *prometheus.HistogramVec
	ledgerOperations    *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	degradedAccounts    prometheus.Gauge
	advisorRequests     *prometheus.CounterVec
	advisorLatency      prometheus.Observer

	cacheHitCount           uint64
	cacheMissCount          uint64
	requestCount            uint64
	requestDurationTotal    uint64
	blobCount               uint64
	blobDurationTotal       uint64
	persistenceFailureCount uint64
	advisorFailureCount     uint64
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

	blobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_blob_duration_seconds",
		Help:    "Duration of ledger blob reads and writes",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	ledgerOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by name and outcome",
	}, []string{"operation", "result"})

	persistenceFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_persistence_failures_total",
		Help: "Blob store failures that switched an account to in-memory mode",
	})

	degradedAccounts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_degraded_accounts",
		Help: "Open ledgers currently running without persistence",
	})

	advisorRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_requests_total",
		Help: "Narrative advisor calls by outcome",
	}, []string{"result"})

	advisorLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisor_latency_seconds",
		Help:    "Latency of narrative advisor calls",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		blobDuration, ledgerOperations, persistenceFailures, degradedAccounts, advisorRequests, advisorLatency, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		blobDuration:        blobDuration,
		ledgerOperations:    ledgerOperations,
		persistenceFailures: persistenceFailures,
		degradedAccounts:    degradedAccounts,
		advisorRequests:     advisorRequests,
		advisorLatency:      advisorLatency,
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
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveBlobOperation records a blob store read or write.
func (m *MetricsService) ObserveBlobOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.blobDuration.WithLabelValues(operation, resultLabel(err)).Observe(duration.Seconds())
	atomic.AddUint64(&m.blobCount, 1)
	atomic.AddUint64(&m.blobDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordLedgerOperation counts one ledger operation outcome.
func (m *MetricsService) RecordLedgerOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordPersistenceFailure marks one account entering in-memory mode.
func (m *MetricsService) RecordPersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Inc()
	m.degradedAccounts.Inc()
	atomic.AddUint64(&m.persistenceFailureCount, 1)
}

// RecordPersistenceRecovered marks one degraded account leaving in-memory mode.
func (m *MetricsService) RecordPersistenceRecovered() {
	if m == nil {
		return
	}
	m.degradedAccounts.Dec()
}

// ObserveAdvisorCall records an advisor round trip.
func (m *MetricsService) ObserveAdvisorCall(err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.advisorRequests.WithLabelValues(resultLabel(err)).Inc()
	m.advisorLatency.Observe(duration.Seconds())
	if err != nil {
		atomic.AddUint64(&m.advisorFailureCount, 1)
	}
}

// Snapshot returns aggregated metrics suitable for JSON endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	blobCount := atomic.LoadUint64(&m.blobCount)
	blobDuration := atomic.LoadUint64(&m.blobDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgBlobMs float64
	if blobCount > 0 {
		avgBlobMs = float64(blobDuration) / float64(blobCount) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		BlobOperations:           blobCount,
		AverageBlobDurationMs:    avgBlobMs,
		PersistenceFailures:      atomic.LoadUint64(&m.persistenceFailureCount),
		AdvisorFailures:          atomic.LoadUint64(&m.advisorFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
