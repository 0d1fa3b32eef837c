// Package metrics exposes the Prometheus instruments shared across the
// workers and the LLM adapter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkerSteps counts completed step_once runs per worker.
	WorkerSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kginvest_worker_steps_total",
		Help: "Completed worker steps.",
	}, []string{"worker"})

	// WorkerErrors counts failed step_once runs per worker.
	WorkerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kginvest_worker_errors_total",
		Help: "Failed worker steps.",
	}, []string{"worker"})

	// LLMCalls counts provider invocations.
	LLMCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kginvest_llm_calls_total",
		Help: "LLM provider calls attempted.",
	})

	// LLMParseFailures counts exchanges that never yielded valid JSON.
	LLMParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kginvest_llm_parse_failures_total",
		Help: "LLM exchanges that produced no parseable JSON object.",
	})

	// TradesExecuted counts executed trade slices by side.
	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kginvest_trades_executed_total",
		Help: "Executed trade slices.",
	}, []string{"side"})

	// InsightsCreated counts committee insights by starred flag.
	InsightsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kginvest_insights_created_total",
		Help: "Committee insights persisted.",
	}, []string{"starred"})
)
