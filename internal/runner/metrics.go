package runner

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: "runner",
			Name:      "jobs_total",
			Help:      "Total number of finished jobs",
		},
		[]string{"task", "status"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskd",
			Subsystem: "runner",
			Name:      "job_duration_seconds",
			Help:      "Time spent inside adapter Run",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"task"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskd",
			Subsystem: "runner",
			Name:      "queue_depth",
			Help:      "Jobs waiting behind the in-flight job",
		},
	)

	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskd",
			Subsystem: "runner",
			Name:      "inflight_jobs",
			Help:      "Jobs currently inside adapter Run (0 or 1)",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, jobDuration, queueDepth, inflight)
}

func statusLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
}
