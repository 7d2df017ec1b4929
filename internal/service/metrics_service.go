package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the timetable cache and the substitution engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	absenceDays     *prometheus.CounterVec
	assignments     *prometheus.CounterVec
	conflicts       prometheus.Counter
	timetableSize   prometheus.Gauge
	engineOperation *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
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
		Name:    "timetable_cache_latency_seconds",
		Help:    "Latency for timetable cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_cache_write_seconds",
		Help:    "Latency for timetable cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_cache_misses_total",
		Help: "Total cache misses",
	})

	absenceDays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absence_days_reconciled_total",
		Help: "Dates processed by absence reconciliation by outcome",
	}, []string{"outcome"})

	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "substitution_assignments_total",
		Help: "Committed substitute assignments by tier and action",
	}, []string{"tier", "action"})

	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "substitution_conflicts_total",
		Help: "Assignments rejected because the substitute was already used that hour",
	})

	timetableSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_entries",
		Help: "Timetable entries loaded by the last import",
	})

	engineOperation := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "substitution_operation_duration_seconds",
		Help:    "Duration of engine operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Requests currently being served",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, inFlight,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		absenceDays, assignments, conflicts, timetableSize, engineOperation,
		goroutines,
	)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		inFlight:        inFlight,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		absenceDays:     absenceDays,
		assignments:     assignments,
		conflicts:       conflicts,
		timetableSize:   timetableSize,
		engineOperation: engineOperation,
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// TrackInFlight adjusts the in-flight request gauge by delta.
func (m *MetricsService) TrackInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
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

// RecordAbsenceDays adds count dates to the given reconciliation outcome.
func (m *MetricsService) RecordAbsenceDays(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.absenceDays.WithLabelValues(outcome).Add(float64(count))
}

// RecordAssignment counts a committed assignment.
func (m *MetricsService) RecordAssignment(tier models.SubstituteTier, action string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(string(tier), action).Inc()
}

// RecordConflict counts a double-booking rejection.
func (m *MetricsService) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// SetTimetableSize publishes the number of imported timetable entries.
func (m *MetricsService) SetTimetableSize(entries int) {
	if m == nil {
		return
	}
	m.timetableSize.Set(float64(entries))
}

// ObserveOperation records the duration of an engine operation.
func (m *MetricsService) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.engineOperation.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
