// Package observability exposes Prometheus metrics, health checks and
// the HTTP server that serves both, for operating a concierge process.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Request-level metrics
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_requests_total",
			Help: "Total number of user requests handled by the orchestrator",
		},
		[]string{"outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_request_duration_seconds",
			Help:    "User request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Plan-step metrics
	planStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_plan_steps_total",
			Help: "Total number of executed plan steps",
		},
		[]string{"agent", "action", "status"},
	)

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_step_duration_seconds",
			Help:    "Plan step duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent", "action"},
	)

	clarificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_clarifications_total",
			Help: "Total number of ambiguity clarifications requested",
		},
		[]string{"resolved"},
	)

	// Bus metrics
	busMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_bus_messages_total",
			Help: "Total number of messages delivered per agent",
		},
		[]string{"agent", "kind"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "concierge_queue_depth",
			Help: "Current mailbox depth per agent",
		},
		[]string{"agent"},
	)

	initOnce sync.Once
)

// InitMetrics registers all metrics with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestsTotal,
			requestDuration,
			planStepsTotal,
			stepDuration,
			clarificationsTotal,
			busMessagesTotal,
			queueDepth,
		)
	})
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records one orchestrator request.
func RecordRequest(outcome string, duration time.Duration) {
	requestsTotal.WithLabelValues(outcome).Inc()
	requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordStep records one executed plan step.
func RecordStep(agent, action, status string, duration time.Duration) {
	planStepsTotal.WithLabelValues(agent, action, status).Inc()
	stepDuration.WithLabelValues(agent, action).Observe(duration.Seconds())
}

// RecordClarification records one ambiguity round-trip to the user.
func RecordClarification(resolved bool) {
	if resolved {
		clarificationsTotal.WithLabelValues("yes").Inc()
	} else {
		clarificationsTotal.WithLabelValues("no").Inc()
	}
}

// RecordBusMessage records one delivered bus message.
func RecordBusMessage(agent, kind string) {
	busMessagesTotal.WithLabelValues(agent, kind).Inc()
}

// SetQueueDepth updates an agent's mailbox depth gauge.
func SetQueueDepth(agent string, depth int) {
	queueDepth.WithLabelValues(agent).Set(float64(depth))
}
