package workers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "worker_events_processed_total",
	Help: "Events handled by worker pools, labeled by pool and result",
}, []string{"pool", "result"})
