package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports service operation outcomes as Prometheus
// collectors.
type PrometheusMetricsRecorder struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the service collectors on reg. A nil
// registerer yields a recorder that drops observations.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	if reg == nil {
		return &PrometheusMetricsRecorder{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "procurement_operation_duration_seconds",
		Help:    "Duration of procurement service operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "procurement_operations_total",
		Help: "Procurement service operations by outcome.",
	}, []string{"operation", "status"})
	reg.MustRegister(duration, total)
	return &PrometheusMetricsRecorder{duration: duration, total: total}
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if r == nil || r.duration == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	status := "error"
	if success {
		status = "success"
	}
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
	r.total.WithLabelValues(operation, status).Inc()
}
