package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimitRejected  *prometheus.CounterVec
	queueEnqueued      *prometheus.CounterVec
	transcodeDuration  *prometheus.HistogramVec
	transcodeFailures  *prometheus.CounterVec
	outputBytes        *prometheus.HistogramVec
	inflightTranscodes prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avifconv_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avifconv_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avifconv_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		queueEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avifconv_queue_conversions_enqueued_total",
			Help: "Total conversions enqueued for async processing.",
		}, []string{"queue"}),
		transcodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avifconv_api_transcode_duration_seconds",
			Help:    "Synchronous transcode latency in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"format", "outcome"}),
		transcodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avifconv_api_transcode_failures_total",
			Help: "Synchronous transcode failures by pipeline stage.",
		}, []string{"stage"}),
		outputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avifconv_api_output_bytes",
			Help:    "Size of encoded outputs in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"format"}),
		inflightTranscodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avifconv_api_inflight_transcodes",
			Help: "Synchronous transcodes currently running.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.queueEnqueued,
		m.transcodeDuration,
		m.transcodeFailures,
		m.outputBytes,
		m.inflightTranscodes,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeTranscode(format string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		stage := string(pipeline.StageOf(err))
		if stage == "" {
			stage = "unknown"
		}
		m.transcodeFailures.WithLabelValues(stage).Inc()
	}
	m.transcodeDuration.WithLabelValues(format, outcome).Observe(elapsed.Seconds())
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses request paths to their route patterns to bound
// label cardinality.
func routeLabel(path string) string {
	switch {
	case path == "/upload":
		return "/upload"
	case strings.HasPrefix(path, "/files/"):
		return "/files/{name}"
	case strings.HasPrefix(path, "/v1/conversions/"):
		return "/v1/conversions/{id}"
	case path == "/v1/conversions":
		return "/v1/conversions"
	case path == "/healthz":
		return "/healthz"
	case path == "/metrics":
		return "/metrics"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
