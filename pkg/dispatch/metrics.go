package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCache       = "cache"
	outcomeDispatched  = "dispatched"
	outcomePassthrough = "passthrough"
	outcomeError       = "error"
)

var (
	// DispatchTotal tracks intercepted requests by outcome
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cover_dispatch_total",
			Help: "Total number of requests by dispatch outcome",
		},
		[]string{"outcome"},
	)

	// DispatchDuration tracks end-to-end handling time of routed requests
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cover_dispatch_duration_seconds",
			Help:    "Duration of routed request handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"cache"},
	)
)
