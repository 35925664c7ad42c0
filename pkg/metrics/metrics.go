package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permgate_evaluations_total",
			Help: "Permission evaluations by decision",
		},
		[]string{"decision"},
	)

	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "permgate_evaluation_duration_seconds",
			Help:    "Permission evaluation latency",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permgate_cache_hits_total",
			Help: "Decision cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permgate_cache_misses_total",
			Help: "Decision cache misses",
		},
	)

	RuleMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permgate_rule_matches_total",
			Help: "Rule matches by rule id",
		},
		[]string{"rule_id"},
	)

	EvaluationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "permgate_evaluation_errors_total",
			Help: "Evaluations degraded to prompt by an internal error",
		},
	)

	ProfilesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "permgate_profiles_loaded",
			Help: "Number of profiles in the store",
		},
	)
)
