package terminal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "terminal_reader_poll_attempts_total",
		Help: "Reader status fetches made while waiting for an action",
	})

	paymentOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terminal_payment_outcomes_total",
		Help: "Terminal payment attempts by outcome",
	}, []string{"outcome"})

	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "terminal_captures_total",
		Help: "Capture decisions, labeled by result",
	}, []string{"result"})

	paymentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "terminal_payment_duration_seconds",
		Help:    "Time from intent creation to a terminal reader state",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})
)
