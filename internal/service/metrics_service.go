package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	txDuration        *prometheus.HistogramVec
	changeEntries     *prometheus.CounterVec
	changeDescribed   prometheus.Observer
	thumbnailDuration prometheus.Observer
	thumbnailFailures prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors on a private registry.
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
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "person_tx_duration_seconds",
		Help:    "Duration of person write transactions including the change log append",
		Buckets: prometheus.DefBuckets,
	}, []string{"action", "outcome"})

	changeEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "change_log_entries_total",
		Help: "Change log entries appended",
	}, []string{"action"})

	changeDescribed := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "change_log_descriptions_per_entry",
		Help:    "Number of field descriptions produced per edit",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})

	thumbnailDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "thumbnail_render_seconds",
		Help:    "Time spent decoding, resizing and encoding photo thumbnails",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	thumbnailFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "thumbnail_failures_total",
		Help: "Thumbnail renders rejected because the input could not be decoded",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		txDuration, changeEntries, changeDescribed, thumbnailDuration, thumbnailFailures, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		txDuration:        txDuration,
		changeEntries:     changeEntries,
		changeDescribed:   changeDescribed,
		thumbnailDuration: thumbnailDuration,
		thumbnailFailures: thumbnailFailures,
	}
}

// Registry exposes the underlying registry, mainly for tests.
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// Transaction outcomes reported by ObserveTransaction.
const (
	TxCommitted  = "commit"
	TxRolledBack = "rollback"
	TxNoop       = "noop"
)

// ObserveTransaction records how long a person write transaction took and how
// it ended. TxNoop marks an edit that was rolled back because nothing changed.
func (m *MetricsService) ObserveTransaction(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(action, outcome).Observe(duration.Seconds())
}

// RecordChangeLogEntry counts a committed change log entry.
func (m *MetricsService) RecordChangeLogEntry(action string, descriptions int) {
	if m == nil {
		return
	}
	m.changeEntries.WithLabelValues(action).Inc()
	if action == actionUpdate {
		m.changeDescribed.Observe(float64(descriptions))
	}
}

// ObserveThumbnail records a thumbnail render.
func (m *MetricsService) ObserveThumbnail(duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.thumbnailDuration.Observe(duration.Seconds())
	if failed {
		m.thumbnailFailures.Inc()
	}
}

// InstrumentedThumbnailer wraps a thumbnailer and reports render timings.
type InstrumentedThumbnailer struct {
	next    thumbnailer
	metrics *MetricsService
}

// NewInstrumentedThumbnailer wraps next. A nil metrics service disables reporting.
func NewInstrumentedThumbnailer(next thumbnailer, metrics *MetricsService) *InstrumentedThumbnailer {
	return &InstrumentedThumbnailer{next: next, metrics: metrics}
}

// Make delegates to the wrapped thumbnailer.
func (t *InstrumentedThumbnailer) Make(data []byte) ([]byte, error) {
	start := time.Now()
	out, err := t.next.Make(data)
	t.metrics.ObserveThumbnail(time.Since(start), err != nil)
	return out, err
}
