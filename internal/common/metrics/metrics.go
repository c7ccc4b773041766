// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PlanStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_generation_stage_total",
			Help: "Generation stages by outcome (ok, fallback, error)",
		},
		[]string{"stage", "outcome"},
	)

	PlanStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_generation_strategy_total",
			Help: "Execution strategy attempts by outcome",
		},
		[]string{"strategy", "outcome"},
	)

	PlanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_generation_runs_total",
			Help: "Pipeline runs by terminal status",
		},
		[]string{"status"},
	)

	PlanRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plan_generation_duration_seconds",
			Help:    "Duration of a full pipeline run in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	PlanQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "plan_generation_queue_depth",
			Help: "Tasks waiting in the delayed queue, ready or not",
		},
		[]string{"category"},
	)

	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questioning_session_events_total",
			Help: "Questioning session events (started, answered, ready, rejected)",
		},
		[]string{"event"},
	)

	AnswerQuality = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "answer_quality_score",
			Help:    "Quality score of submitted answers",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

// Stage outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)
