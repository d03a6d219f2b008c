package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineRuns counts generation pipeline runs by outcome (under_review|sent|failed|duplicate).
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "welcome_pipeline_runs_total",
			Help: "Total number of welcome email generation runs",
		},
		[]string{"outcome"},
	)

	// LLMCalls counts chat completion calls by pipeline stage and result (success|failure).
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "welcome_llm_calls_total",
			Help: "Total number of LLM calls",
		},
		[]string{"stage", "outcome"},
	)

	// EmailsSent counts Gmail send attempts by result (success|failure|test).
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "welcome_emails_sent_total",
			Help: "Total number of emails sent through connected Gmail accounts",
		},
		[]string{"outcome"},
	)

	// HTTPLatency measures HTTP request latencies.
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "welcome_http_request_duration_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
