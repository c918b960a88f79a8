// Package metrics exposes the supervisor's Prometheus gauges/counters:
// queue depth, job outcomes, worker busy state, and host/process memory.
// Registration pattern (namespace, promhttp.Handler) kept from a larger
// service's metrics layer, trimmed of HTTP/DB/cache/Kafka/auth/business
// metrics that have no home in a single-process game-server supervisor
// with no persistence, no messaging, and no multi-tenant business data.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the engine updates.
type Metrics struct {
	QueueDepth         prometheus.Gauge
	JobsEnqueuedTotal  *prometheus.CounterVec
	JobsCompletedTotal *prometheus.CounterVec
	JobDuration        *prometheus.HistogramVec
	WorkerBusy         prometheus.Gauge
	PredicateErrors    *prometheus.CounterVec
	ServerState        *prometheus.GaugeVec
	ProcessMemory      prometheus.Gauge
	HostMemory         prometheus.Gauge
}

// NewMetrics builds and registers all collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of workflow jobs currently queued.",
		}),
		JobsEnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Total number of workflow jobs enqueued, by job id.",
		}, []string{"job"}),
		JobsCompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of workflow jobs that finished running, by job id and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of a workflow job's task sequence.",
			Buckets:   []float64{.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"job"}),
		WorkerBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_busy",
			Help:      "1 while the single worker goroutine is executing a job's tasks, else 0.",
		}),
		PredicateErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_predicate_errors_total",
			Help:      "Total number of scheduler predicate evaluations that returned an error.",
		}, []string{"job"}),
		ServerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "managed_server_state",
			Help:      "1 for the managed server's current derived state, by state name; 0 otherwise.",
		}, []string{"state"}),
		ProcessMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_memory_percent",
			Help:      "Managed server process RSS as a percent of host RAM.",
		}),
		HostMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "host_memory_percent",
			Help:      "Host-wide virtual memory usage percent (observability only; does not feed the OOM predicate).",
		}),
	}

	m.Register()
	return m
}

// Register registers every collector with the default Prometheus registry.
func (m *Metrics) Register() {
	prometheus.MustRegister(
		m.QueueDepth,
		m.JobsEnqueuedTotal,
		m.JobsCompletedTotal,
		m.JobDuration,
		m.WorkerBusy,
		m.PredicateErrors,
		m.ServerState,
		m.ProcessMemory,
		m.HostMemory,
	)
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// SetServerState zeroes every known state gauge then sets only the
// current one to 1, so a scrape always sees exactly one active series.
func (m *Metrics) SetServerState(current string, known ...string) {
	for _, state := range known {
		value := 0.0
		if state == current {
			value = 1.0
		}
		m.ServerState.WithLabelValues(state).Set(value)
	}
}
