package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

var QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "osmdag",
	Subsystem: "query",
	Name:      "duration_seconds",
	Buckets:   prometheus.DefBuckets,
})

var QueryResults = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "osmdag",
	Subsystem: "query",
	Name:      "results_total",
})

var WriteCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "osmdag",
	Subsystem: "db",
	Name:      "rows_total",
}, []string{"type"})
