package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CasesTotal counts sessions by final status.
	CasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseflowd",
			Subsystem: "orchestrator",
			Name:      "cases_total",
			Help:      "Total number of case sessions by final status",
		},
		[]string{"status"},
	)

	// StageRuns counts stage executions by stage name and outcome.
	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseflowd",
			Subsystem: "orchestrator",
			Name:      "stage_runs_total",
			Help:      "Total number of stage runs by stage and record state",
		},
		[]string{"stage", "state"},
	)

	// HandoffDecisions counts gate outcomes by stage and decision.
	HandoffDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseflowd",
			Subsystem: "orchestrator",
			Name:      "handoff_decisions_total",
			Help:      "Total number of handoff gate decisions by stage and decision",
		},
		[]string{"stage", "decision"},
	)

	// StageDuration tracks stage execution latency.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caseflowd",
			Subsystem: "orchestrator",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// ActiveSessions tracks sessions currently held in memory.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "caseflowd",
			Subsystem: "orchestrator",
			Name:      "active_sessions",
			Help:      "Number of sessions currently tracked by the orchestrator",
		},
	)

	// StaleRecordsSwept counts RUNNING records converted to FAILED by the
	// crash-recovery sweep.
	StaleRecordsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caseflowd",
			Subsystem: "orchestrator",
			Name:      "stale_records_swept_total",
			Help:      "Total number of stale RUNNING records converted to FAILED",
		},
	)
)
