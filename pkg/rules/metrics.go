package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeApplied = "applied"
	outcomeSkipped = "skipped"
	outcomeError   = "error"
)

var (
	// RuleEvaluations tracks rule evaluations by step and outcome
	RuleEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cover_rule_evaluations_total",
			Help: "Total number of rule evaluations by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	// StepDuration tracks the time spent evaluating a step
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cover_step_duration_seconds",
			Help:    "Duration of rule step evaluation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"step"},
	)
)
