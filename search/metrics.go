package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "notify_search_request_duration_seconds",
	Help:    "The duration of requests to the search index",
	Buckets: prometheus.DefBuckets,
})

var requestErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "notify_search_errors_total",
	Help: "The number of saved searches that failed after retries",
})
