// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "climmo_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "climmo_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"route"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "climmo_cache_hits_total",
		Help: "Cache hits by cache",
	}, []string{"cache"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "climmo_cache_misses_total",
		Help: "Cache misses by cache",
	}, []string{"cache"})
	CacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "climmo_frame_cache_evictions_total",
		Help: "Frames evicted from the in-process cache",
	})
	FrameLoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "climmo_frame_load_duration_ms",
		Help:    "Time to read and clean a dataset in milliseconds",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 20000, 60000},
	})
	ClassifyUnknownTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "climmo_classify_unknown_total",
		Help: "Department codes classified to the unknown sentinel through the API",
	})
	BuildTablesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "climmo_build_tables_total",
		Help: "Summary tables written by sink",
	}, []string{"sink"})
	BuildDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "climmo_build_duration_seconds",
		Help:    "Duration of a summary build",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	ImportRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "climmo_import_runs_total",
		Help: "Import runs by source and status",
	}, []string{"source", "status"})
	SourceUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "climmo_source_up",
		Help: "1 when the last availability check of a source succeeded",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)
	prometheus.MustRegister(FrameLoadDurationMs)
	prometheus.MustRegister(ClassifyUnknownTotal)
	prometheus.MustRegister(BuildTablesTotal)
	prometheus.MustRegister(BuildDurationSeconds)
	prometheus.MustRegister(ImportRunsTotal)
	prometheus.MustRegister(SourceUp)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests and observes their duration, labelled by the
// matched mux pattern so path values do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		RequestDurationMs.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
