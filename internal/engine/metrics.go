package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// exploreCallsTotal counts explore calls by result
	exploreCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warren_explore_calls_total",
		Help: "Total explore calls by result",
	}, []string{"result"})

	exploreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warren_explore_duration_seconds",
		Help:    "Explore call latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	plansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warren_plans_total",
		Help: "Total plans submitted",
	})

	// queriesTotal follows the contest cost model: one per call plus one per plan
	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warren_queries_total",
		Help: "Total query cost spent",
	})

	iterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warren_iterations_total",
		Help: "Total explore/analyze iterations",
	})

	// observationsTotal counts observations by outcome: applied, recovered,
	// rejected or malformed
	observationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warren_observations_total",
		Help: "Total observations by outcome",
	}, []string{"result"})

	mergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warren_merges_total",
		Help: "Total merges by kind",
	}, []string{"kind"})

	mergeConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warren_merge_conflicts_total",
		Help: "Total merges refused for violating graph consistency",
	})

	rollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warren_rollbacks_total",
		Help: "Total speculative merges undone after a label contradiction",
	})

	discriminatorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warren_discriminators_total",
		Help: "Total discriminating plans synthesized",
	})

	representativesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warren_hypothesis_representatives",
		Help: "Representative nodes in the current hypothesis",
	})

	knownDoorsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warren_hypothesis_known_doors",
		Help: "Known door slots across all hypothesis nodes",
	})

	unconfirmedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warren_hypothesis_unconfirmed_merges",
		Help: "Speculative merges not yet confirmed",
	})
)
