package invalidation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sources of invalidation recorded in metrics and logs.
const (
	SourceAPI     = "api"
	SourcePublish = "publish"
	SourceChannel = "channel"
	SourceHTTP    = "http"
)

var (
	// Invalidations tracks flushed tags by trigger
	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cover_invalidations_total",
			Help: "Total number of flushed cache tags by source",
		},
		[]string{"source"},
	)

	// InvalidationErrors tracks failed flushes by trigger
	InvalidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cover_invalidation_errors_total",
			Help: "Total number of failed cache tag flushes by source",
		},
		[]string{"source"},
	)
)
