package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreErrors tracks backend I/O failures by store and operation
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cover_store_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"store", "operation"}, // "metadata"/"content", "has", "get", "set", "flush"
	)
)
