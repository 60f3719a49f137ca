// Package metrics provides Prometheus metrics for emsolve.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "emsolve"
)

// Assembly metrics track sparse system construction.
var (
	// ChunksAssembled is the total number of section-pair chunks assembled.
	ChunksAssembled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_assembled_total",
		Help:      "Total number of section-pair chunks assembled",
	})

	// MatchesLoaded is the total number of point matches loaded from the store.
	MatchesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_loaded_total",
		Help:      "Total number of point matches loaded from the store",
	})

	// AssemblyDuration is a histogram of full assembly duration in seconds.
	AssemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "assembly_duration_seconds",
		Help:      "Duration of sparse system assembly in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~409s
	})
)

// Solver metrics track local solves.
var (
	// SolverIterations is a histogram of iterations per solve.
	SolverIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "solver_iterations",
		Help:      "Conjugate gradient iterations per solve",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
	})

	// SolveDuration is a histogram of solve duration in seconds.
	SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "solve_duration_seconds",
		Help:      "Duration of local solves in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~164s
	})
)

// Cluster metrics track batch scheduler interaction.
var (
	// JobsSubmitted is the total number of jobs handed to the scheduler.
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_submitted_total",
		Help:      "Total number of jobs submitted to the batch scheduler",
	})

	// JobsFinished is the total number of jobs observed reaching a terminal
	// state, by outcome.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_finished_total",
		Help:      "Total number of jobs observed reaching a terminal state",
	}, []string{"outcome"})

	// SchedulerPolls is the total number of qstat queries issued.
	SchedulerPolls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_polls_total",
		Help:      "Total number of scheduler status queries issued",
	})
)
