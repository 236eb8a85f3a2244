// Package main generates sample caseflowd metrics for testing Grafana
// dashboards without running real cases.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mirror the names the orchestrator exports so dashboards built
// against this generator work unchanged against a live daemon.
var (
	casesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflowd_orchestrator_cases_total",
			Help: "Total number of case sessions by final status",
		},
		[]string{"status"},
	)
	stageRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflowd_orchestrator_stage_runs_total",
			Help: "Total number of stage runs by stage and record state",
		},
		[]string{"stage", "state"},
	)
	handoffDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseflowd_orchestrator_handoff_decisions_total",
			Help: "Total number of handoff gate decisions by stage and decision",
		},
		[]string{"stage", "decision"},
	)
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caseflowd_orchestrator_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "caseflowd_orchestrator_active_sessions",
			Help: "Number of sessions currently tracked by the orchestrator",
		},
	)
	staleRecordsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "caseflowd_orchestrator_stale_records_swept_total",
			Help: "Total number of stale RUNNING records converted to FAILED",
		},
	)
)

var (
	stageNames = []string{
		"issue-extraction", "retrieval", "limitation-check",
		"argument-build", "draft", "compliance-check", "aid-suggestion",
	}
	statuses  = []string{"COMPLETED", "AWAITING_HUMAN", "BLOCKED", "FAILED"}
	decisions = []string{"PASS", "ESCALATE", "BLOCK"}
	states    = []string{"SUCCEEDED", "FAILED"}
)

func init() {
	prometheus.MustRegister(
		casesTotal,
		stageRuns,
		handoffDecisions,
		stageDuration,
		activeSessions,
		staleRecordsSwept,
	)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	generateSampleData()

	ctx, cancel := context.WithCancel(context.Background())
	go generateContinuousData(ctx)

	http.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + port}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
		_ = server.Shutdown(context.Background())
	}()

	fmt.Printf("Sample metrics server running on http://localhost:%s/metrics\n", port)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println("\nTo use with Prometheus, add this to prometheus.yml:")
	fmt.Printf("  - job_name: 'caseflowd-test'\n    static_configs:\n      - targets: ['localhost:%s']\n", port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// generateSampleData seeds a believable history: most cases complete,
// some suspend for review, a few block.
func generateSampleData() {
	for i := 0; i < 200; i++ {
		casesTotal.WithLabelValues(weightedStatus()).Inc()
	}
	for i := 0; i < 1200; i++ {
		stage := randomChoice(stageNames)
		stageRuns.WithLabelValues(stage, weightedState()).Inc()
		handoffDecisions.WithLabelValues(stage, weightedDecision()).Inc()
		stageDuration.WithLabelValues(stage).Observe(rand.Float64() * 3)
	}
	for i := 0; i < 4; i++ {
		staleRecordsSwept.Inc()
	}
	activeSessions.Set(float64(rand.Intn(20) + 2))
}

// generateContinuousData keeps metrics moving so rate() panels render.
func generateContinuousData(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stage := randomChoice(stageNames)
			stageRuns.WithLabelValues(stage, weightedState()).Inc()
			handoffDecisions.WithLabelValues(stage, weightedDecision()).Inc()
			stageDuration.WithLabelValues(stage).Observe(rand.Float64() * 3)

			if rand.Intn(5) == 0 {
				casesTotal.WithLabelValues(weightedStatus()).Inc()
			}
			activeSessions.Set(float64(rand.Intn(20) + 2))
		}
	}
}

func weightedStatus() string {
	r := rand.Intn(100)
	switch {
	case r < 70:
		return statuses[0] // COMPLETED
	case r < 90:
		return statuses[1] // AWAITING_HUMAN
	case r < 96:
		return statuses[2] // BLOCKED
	default:
		return statuses[3] // FAILED
	}
}

func weightedDecision() string {
	r := rand.Intn(100)
	switch {
	case r < 75:
		return decisions[0]
	case r < 95:
		return decisions[1]
	default:
		return decisions[2]
	}
}

func weightedState() string {
	if rand.Intn(100) < 95 {
		return states[0]
	}
	return states[1]
}

func randomChoice(options []string) string {
	return options[rand.Intn(len(options))]
}
