// Package metrics defines the Prometheus collectors for video generation and
// the handler that exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clarity"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of video generation runs",
		},
		[]string{"status"}, // success, error
	)

	attemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of generate-and-render attempts",
		},
		[]string{"outcome"}, // success, generate_error, render_error, missing_video
	)

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps in seconds",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"step"}, // generate, render, total
	)

	runsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Number of runs currently in progress",
		},
	)

	speechRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_requests_total",
			Help:      "Narration requests by cache result",
		},
		[]string{"provider", "cache"}, // cache: hit, miss, error
	)

	allMetrics = []prometheus.Collector{
		runsTotal,
		attemptsTotal,
		stepDuration,
		runsActive,
		speechRequestsTotal,
	}
)

// NewRegistry returns a registry holding the clarity collectors and the Go
// runtime collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, collector := range allMetrics {
		reg.MustRegister(collector)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics of reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RunStarted marks a run in progress
func RunStarted() {
	runsActive.Inc()
}

// RunFinished records the outcome and total duration of a run
func RunFinished(err error, took time.Duration) {
	runsActive.Dec()
	runsTotal.WithLabelValues(status(err)).Inc()
	stepDuration.WithLabelValues("total").Observe(took.Seconds())
}

// Attempt counts one attempt by outcome
func Attempt(outcome string) {
	attemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStep records how long a pipeline step took
func ObserveStep(step string, took time.Duration) {
	stepDuration.WithLabelValues(step).Observe(took.Seconds())
}

// Speech counts a narration request by provider and cache result
func Speech(provider, cache string) {
	speechRequestsTotal.WithLabelValues(provider, cache).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
