// Package metrics declares the prometheus collectors exported at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "atci",
		Name:      "jobs_processed_total",
		Help:      "Total jobs the processor loop finished, by process type and outcome.",
	}, []string{"process_type", "outcome"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atci",
		Name:      "queue_depth",
		Help:      "Number of jobs currently pending.",
	})

	Processing = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atci",
		Name:      "processing",
		Help:      "1 while a job occupies the current slot, 0 otherwise.",
	})

	IndexSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "atci",
		Name:      "index_size",
		Help:      "Number of videos in the rebuilt video index.",
	})
)

// Register adds every atci collector to reg. Called once at startup.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(JobsProcessedTotal, QueueDepth, Processing, IndexSize)
}
