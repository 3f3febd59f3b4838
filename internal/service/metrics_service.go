package service

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	transitions     *prometheus.CounterVec
	effects         *prometheus.CounterVec
	casRetries      *prometheus.CounterVec
	expirations     *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	transitionOK   uint64
	transitionFail uint64
	expiredCount   uint64
}

// MetricsSnapshot is a point-in-time summary of the counters above.
type MetricsSnapshot struct {
	RequestsTotal     uint64    `json:"requests_total"`
	CacheHits         uint64    `json:"cache_hits"`
	CacheMisses       uint64    `json:"cache_misses"`
	CacheHitRatio     float64   `json:"cache_hit_ratio"`
	TransitionsOK     uint64    `json:"transitions_ok"`
	TransitionsFailed uint64    `json:"transitions_failed"`
	AttemptsExpired   uint64    `json:"attempts_expired"`
	Goroutines        int       `json:"goroutines"`
	GeneratedAt       time.Time `json:"generated_at"`
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Workflow commands by outcome",
	}, []string{"workflow", "command", "outcome"})

	effects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_effects_total",
		Help: "Workflow effects handed to sinks",
	}, []string{"kind", "type", "outcome"})

	casRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_version_conflicts_total",
		Help: "Compare-and-swap conflicts that forced a reload",
	}, []string{"entity"})

	expirations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_attempts_expired_total",
		Help: "Exam attempts closed at their deadline",
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheHits, cacheMisses,
		transitions, effects, casRetries, expirations, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		transitions:     transitions,
		effects:         effects,
		casRetries:      casRetries,
		expirations:     expirations,
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
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
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

// RecordTransition counts one workflow command outcome. err is classified
// by its error code so business rejections stay distinguishable.
func (m *MetricsService) RecordTransition(workflow, command string, err error) {
	if m == nil {
		return
	}
	outcome := outcomeLabel(err)
	m.transitions.WithLabelValues(workflow, command, outcome).Inc()
	if err == nil {
		atomic.AddUint64(&m.transitionOK, 1)
	} else {
		atomic.AddUint64(&m.transitionFail, 1)
	}
}

// RecordEffect counts an effect handed to its sink.
func (m *MetricsService) RecordEffect(kind, effectType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.effects.WithLabelValues(kind, effectType, outcome).Inc()
}

// RecordVersionConflict counts a compare-and-swap miss.
func (m *MetricsService) RecordVersionConflict(entity string) {
	if m == nil {
		return
	}
	m.casRetries.WithLabelValues(entity).Inc()
}

// RecordExpiration counts an attempt closed at its deadline.
func (m *MetricsService) RecordExpiration(source string) {
	if m == nil {
		return
	}
	m.expirations.WithLabelValues(source).Inc()
	atomic.AddUint64(&m.expiredCount, 1)
}

// Snapshot returns aggregated metrics suitable for the admin endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return MetricsSnapshot{
		RequestsTotal:     atomic.LoadUint64(&m.requestCount),
		CacheHits:         hits,
		CacheMisses:       misses,
		CacheHitRatio:     ratio,
		TransitionsOK:     atomic.LoadUint64(&m.transitionOK),
		TransitionsFailed: atomic.LoadUint64(&m.transitionFail),
		AttemptsExpired:   atomic.LoadUint64(&m.expiredCount),
		Goroutines:        runtime.NumGoroutine(),
		GeneratedAt:       time.Now().UTC(),
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(appErrors.FromError(err).Code)
}
