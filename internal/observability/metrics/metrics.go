package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "cityreport_"

var (
	registerOnce sync.Once

	lifecycleOps *prometheus.CounterVec
	auditDrops   *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers observability metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		lifecycleOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "lifecycle_operations_total",
				Help: "Lifecycle mutations by record type, operation and result",
			},
			[]string{"record", "operation", "result"},
		)
		auditDrops = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "audit_dropped_total",
				Help: "Audit entries dropped because the audit sink failed",
			},
			[]string{"action"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		)

		prometheus.MustRegister(lifecycleOps, auditDrops, httpLatency)
	})
}

// IncLifecycleOp counts one lifecycle mutation outcome.
func IncLifecycleOp(record, operation, result string) {
	if lifecycleOps == nil {
		return
	}
	lifecycleOps.WithLabelValues(record, operation, result).Inc()
}

// IncAuditDrop counts one best-effort audit write failure.
func IncAuditDrop(action string) {
	if auditDrops == nil {
		return
	}
	auditDrops.WithLabelValues(action).Inc()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, status string, seconds float64) {
	if httpLatency == nil {
		return
	}
	httpLatency.WithLabelValues(method, status).Observe(seconds)
}
