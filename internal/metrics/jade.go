package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds JADE's submission-loop and execution instrumentation.
type Metrics struct {
	registry *ComponentRegistry

	BatchesSubmittedTotal prometheus.Counter
	JobsCompletedTotal    *prometheus.CounterVec
	ActiveBatches         prometheus.Gauge
	LockWaitSeconds       prometheus.Histogram
	SubmitterLoopDuration prometheus.Histogram
}

// New creates JADE's metrics, registered under the jade_submitter namespace
// against the global default registry.
func New() *Metrics {
	return newWith(NewComponentRegistry("jade", "submitter"))
}

// NewWithRegistry is New against an explicit prometheus.Registerer, used in
// tests to avoid re-registering against the process-global default.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	return newWith(NewComponentRegistryWith("jade", "submitter", reg))
}

func newWith(reg *ComponentRegistry) *Metrics {
	return &Metrics{
		registry: reg,

		BatchesSubmittedTotal: reg.NewCounter(prometheus.CounterOpts{
			Name: "batches_submitted_total",
			Help: "Total number of batches submitted to the HPC scheduler",
		}),

		JobsCompletedTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed, by terminal status",
		}, []string{"status"}),

		ActiveBatches: reg.NewGauge(prometheus.GaugeOpts{
			Name: "active_batches",
			Help: "Number of batches currently submitted and not yet finalized",
		}),

		LockWaitSeconds: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "lock_wait_seconds",
			Help:    "Time spent waiting to acquire the cluster state lock",
			Buckets: DurationBuckets,
		}),

		SubmitterLoopDuration: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "loop_duration_seconds",
			Help:    "Duration of a single SubmitterLoop iteration",
			Buckets: DurationBuckets,
		}),
	}
}

// RecordBatchSubmitted records a successful batch submission.
func (m *Metrics) RecordBatchSubmitted() {
	m.BatchesSubmittedTotal.Inc()
	m.ActiveBatches.Inc()
}

// RecordBatchFinalized records a batch leaving the active set.
func (m *Metrics) RecordBatchFinalized() {
	m.ActiveBatches.Dec()
}

// RecordJobCompleted records a job reaching a terminal status.
func (m *Metrics) RecordJobCompleted(status string) {
	m.JobsCompletedTotal.WithLabelValues(status).Inc()
}
