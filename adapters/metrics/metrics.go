// Package metrics provides Prometheus metrics collection for Quill.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for Quill.
type Collector struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RequestsInFlight  prometheus.Gauge

	// Webhook metrics
	WebhookDeliveries *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// ReloadSucceeded counts a successful configuration reload.
func (c *Collector) ReloadSucceeded() { c.ConfigReloads.Inc() }

// ReloadFailed counts a failed configuration reload.
func (c *Collector) ReloadFailed() { c.ConfigReloadErrors.Inc() }

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quill",
				Name:      "operations_total",
				Help:      "Total number of collection operations processed",
			},
			[]string{"collection", "operation", "status"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quill",
				Name:      "operation_duration_seconds",
				Help:      "Operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"collection", "operation"},
		),
		RequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "quill",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		WebhookDeliveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quill",
				Name:      "webhook_deliveries_total",
				Help:      "Total number of webhook delivery attempts",
			},
			[]string{"status"},
		),
		ConfigReloads: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quill",
				Name:      "config_reloads_total",
				Help:      "Total number of configuration reloads",
			},
		),
		ConfigReloadErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quill",
				Name:      "config_reload_errors_total",
				Help:      "Total number of failed configuration reloads",
			},
		),
	}
}
