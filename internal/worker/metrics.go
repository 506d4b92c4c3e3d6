package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	conversionsTotal   *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	activeConversions  prometheus.Gauge
	failuresByStage    *prometheus.CounterVec
	outputBytesTotal   *prometheus.CounterVec
	colorBytesTotal    prometheus.Counter
	alphaBytesTotal    prometheus.Counter
	bytesSavedTotal    prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		conversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avifconv_worker_conversions_total",
			Help: "Total conversions handled by the worker by output format and final status.",
		}, []string{"format", "status"}),
		conversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avifconv_worker_conversion_duration_seconds",
			Help:    "End-to-end duration of each worker conversion.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"format", "status"}),
		activeConversions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avifconv_worker_active_conversions",
			Help: "Conversions currently running in the worker.",
		}),
		failuresByStage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avifconv_worker_failures_total",
			Help: "Failed conversions by pipeline stage.",
		}, []string{"stage"}),
		outputBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avifconv_worker_output_bytes_total",
			Help: "Total encoded bytes written by the worker.",
		}, []string{"format"}),
		colorBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avifconv_worker_color_bytes_total",
			Help: "Total bytes spent on color planes.",
		}),
		alphaBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avifconv_worker_alpha_bytes_total",
			Help: "Total bytes spent on alpha planes.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "avifconv_worker_bytes_saved_total",
			Help: "Total source bytes saved by conversion.",
		}),
	}

	registry.MustRegister(
		m.conversionsTotal,
		m.conversionDuration,
		m.activeConversions,
		m.failuresByStage,
		m.outputBytesTotal,
		m.colorBytesTotal,
		m.alphaBytesTotal,
		m.bytesSavedTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
