package index

import (
	"github.com/prometheus/client_golang/prometheus"
)

var IndexedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "osmdag",
	Subsystem: "index",
	Name:      "entries_total",
	Help:      "Log entries applied per index",
}, []string{"index"})

var IndexLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "osmdag",
	Subsystem: "index",
	Name:      "lag",
	Help:      "Log entries not yet applied per index",
}, []string{"index"})
