package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var digestRuns = promauto.NewCounter(prometheus.CounterOpts{
	Name: "notify_digest_runs_total",
	Help: "The number of digest runs started",
})

var runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "notify_digest_run_duration_seconds",
	Help:    "The duration of a full digest run",
	Buckets: prometheus.DefBuckets,
})

var usersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notify_users_processed_total",
	Help: "The number of users processed by digest runs",
}, []string{"outcome"})

var updatesFound = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notify_updates_found_total",
	Help: "The number of non-empty updates found",
}, []string{"kind"})

var finderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notify_finder_errors_total",
	Help: "The number of update finder failures",
}, []string{"kind"})

var watermarkConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notify_watermark_conflicts_total",
	Help: "The number of watermark writes lost to a concurrent run",
}, []string{"kind"})

var digestsDispatched = promauto.NewCounter(prometheus.CounterOpts{
	Name: "notify_digests_dispatched_total",
	Help: "The number of digests handed to the delivery queue",
})

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notify_deliveries_total",
	Help: "The number of digest delivery attempts",
}, []string{"status"})
