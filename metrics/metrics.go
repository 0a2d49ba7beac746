/*
Package metrics holds the Prometheus collectors for backend traffic and
dashboard state.

COLLECTORS:
  ledger_backend_requests_total{resource,result}   fetches by outcome
  ledger_backend_latency_seconds{resource,result}  fetch latency
  ledger_backend_fallback_total{resource,stage}    widened retries
  ledger_stale_results_total{resource}             results dropped by the sequencer
  ledger_read_only_denials_total{action}           writes refused by the period gate
  ledger_view_read_only                            1 while a past period is viewed

Init registers everything once with the default registerer. The Observe*
and Inc* helpers are no-ops until Init has run, so library code can call
them unconditionally and tests that never call Init stay silent.
*/
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ledger_"

	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultEmpty    = "empty"
)

var (
	registerOnce sync.Once

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	backendFallback *prometheus.CounterVec

	staleResults    *prometheus.CounterVec
	readOnlyDenials *prometheus.CounterVec
	viewReadOnly    prometheus.Gauge
)

// Init registers the collectors with the default registerer.
func Init() {
	InitWith(prometheus.DefaultRegisterer)
}

// InitWith registers the collectors with reg. Only the first call in a
// process has any effect.
func InitWith(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		backendRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backend_requests_total",
				Help: "Total backend fetches by resource and result",
			},
			[]string{"resource", "result"},
		)
		backendLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "backend_latency_seconds",
				Help:    "Backend fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "result"},
		)
		backendFallback = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backend_fallback_total",
				Help: "Widened backend queries issued after an empty answer, by stage",
			},
			[]string{"resource", "stage"},
		)
		staleResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stale_results_total",
				Help: "Load results discarded because a newer load was issued",
			},
			[]string{"resource"},
		)
		readOnlyDenials = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "read_only_denials_total",
				Help: "Mutating actions refused while viewing a non-active period",
			},
			[]string{"action"},
		)
		viewReadOnly = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "view_read_only",
				Help: "1 while the viewed period differs from the active period",
			},
		)

		reg.MustRegister(
			backendRequests,
			backendLatency,
			backendFallback,
			staleResults,
			readOnlyDenials,
			viewReadOnly,
		)
	})
}

// ObserveBackend records one backend fetch.
func ObserveBackend(resource, result string, duration time.Duration) {
	if resource == "" {
		resource = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if backendRequests != nil {
		backendRequests.WithLabelValues(resource, result).Inc()
	}
	if backendLatency != nil {
		backendLatency.WithLabelValues(resource, result).Observe(duration.Seconds())
	}
}

// IncFallback counts a widened retry.
func IncFallback(resource, stage string) {
	if backendFallback != nil {
		backendFallback.WithLabelValues(resource, stage).Inc()
	}
}

// IncStale counts a result dropped by the sequencer.
func IncStale(resource string) {
	if staleResults != nil {
		staleResults.WithLabelValues(resource).Inc()
	}
}

// IncReadOnlyDenial counts a refused mutating action.
func IncReadOnlyDenial(action string) {
	if readOnlyDenials != nil {
		readOnlyDenials.WithLabelValues(action).Inc()
	}
}

// SetReadOnly publishes the current read-only flag.
func SetReadOnly(readOnly bool) {
	if viewReadOnly == nil {
		return
	}
	if readOnly {
		viewReadOnly.Set(1)
	} else {
		viewReadOnly.Set(0)
	}
}
