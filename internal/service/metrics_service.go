package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

// MetricsSnapshot is a point-in-time summary exposed on the health endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	LeadsMoved               uint64    `json:"leads_moved"`
	Classifications          uint64    `json:"classifications"`
	ActiveCalls              int64     `json:"active_calls"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface and the lead pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	leadsMoved      *prometheus.CounterVec
	classifications *prometheus.CounterVec
	audits          *prometheus.CounterVec
	exports         *prometheus.CounterVec
	activeCalls     prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	leadsMovedCount      uint64
	classificationCount  uint64
	activeCallCount      int64
}

// NewMetricsService registers the collectors on a private registry.
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
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
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

	leadsMoved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_moved_total",
		Help: "Leads written by distribution operations",
	}, []string{"mode"})

	classifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lead_classifications_total",
		Help: "Classified calls by resulting stage",
	}, []string{"stage"})

	audits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_transitions_total",
		Help: "Verification challenge transitions by resulting status",
	}, []string{"status"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarded_exports_total",
		Help: "Forwarded queue export jobs by terminal status",
	}, []string{"status"})

	activeCalls := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "call_sessions_active",
		Help: "Call sessions with a running timer",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		leadsMoved, classifications, audits, exports, activeCalls, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		leadsMoved:      leadsMoved,
		classifications: classifications,
		audits:          audits,
		exports:         exports,
		activeCalls:     activeCalls,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
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
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
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

// RecordLeadsMoved counts leads written by a distribution mode.
func (m *MetricsService) RecordLeadsMoved(mode string, moved int) {
	if m == nil || moved <= 0 {
		return
	}
	m.leadsMoved.WithLabelValues(mode).Add(float64(moved))
	atomic.AddUint64(&m.leadsMovedCount, uint64(moved))
}

// RecordClassification counts a classified call.
func (m *MetricsService) RecordClassification(stage models.LeadStage) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(string(stage)).Inc()
	atomic.AddUint64(&m.classificationCount, 1)
}

// RecordAudit counts a verification transition.
func (m *MetricsService) RecordAudit(status models.ChallengeStatus) {
	if m == nil {
		return
	}
	m.audits.WithLabelValues(string(status)).Inc()
}

// RecordExport counts a finished export job.
func (m *MetricsService) RecordExport(status models.ExportStatus) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(string(status)).Inc()
}

// SetActiveCalls publishes the number of running call timers.
func (m *MetricsService) SetActiveCalls(n int) {
	if m == nil {
		return
	}
	m.activeCalls.Set(float64(n))
	atomic.StoreInt64(&m.activeCallCount, int64(n))
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHitRatio:            cacheRatio,
		LeadsMoved:               atomic.LoadUint64(&m.leadsMovedCount),
		Classifications:          atomic.LoadUint64(&m.classificationCount),
		ActiveCalls:              atomic.LoadInt64(&m.activeCallCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
