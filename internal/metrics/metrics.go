package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "genejobs"

var (
	JobsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_submitted_total",
		Help:      "Jobs accepted by the API.",
	})
	JobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_processed_total",
		Help:      "Jobs handled by workers, by outcome.",
	}, []string{"outcome"})
	RecordsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Gene records left out of a summary, by reason.",
	}, []string{"reason"})
	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Time spent processing one job.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})
	LeasesRequeued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leases_requeued_total",
		Help:      "In-flight queue entries returned to the queue after their lease expired.",
	})
)

// Job outcomes.
const (
	OutcomeComplete  = "complete"
	OutcomeAbandoned = "abandoned"
	OutcomeFailed    = "failed"
)

func init() {
	prometheus.MustRegister(JobsSubmitted, JobsProcessed, RecordsSkipped, JobDuration, LeasesRequeued)
}
