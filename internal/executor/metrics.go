package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the Plan Executor: step counts by tool and outcome,
// step durations, run outcomes, and skipped steps, surfaced at the process's
// /metrics endpoint. Dispatch retries are not counted here.
type Metrics struct {
	StepsExecuted  *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	RunOutcomes    *prometheus.CounterVec
	StepsSkipped   prometheus.Counter
}

// NewMetrics registers the executor's Prometheus collectors. Call once at
// startup.
func NewMetrics() *Metrics {
	return &Metrics{
		StepsExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intentorch_executor_steps_total",
				Help: "Total steps executed by tool name and outcome",
			},
			[]string{"tool_name", "status"},
		),
		StepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "intentorch_executor_step_duration_seconds",
				Help:    "Step execution duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool_name"},
		),
		RunOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intentorch_executor_runs_total",
				Help: "Total runs by terminal status",
			},
			[]string{"status"},
		),
		StepsSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "intentorch_executor_steps_skipped_total",
				Help: "Total steps marked skipped under the fail-fast policy",
			},
		),
	}
}

func (m *Metrics) recordStep(toolName, status string, seconds float64) {
	if m == nil {
		return
	}
	m.StepsExecuted.WithLabelValues(toolName, status).Inc()
	m.StepDuration.WithLabelValues(toolName).Observe(seconds)
}

func (m *Metrics) recordRun(status string) {
	if m == nil {
		return
	}
	m.RunOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) recordSkip() {
	if m == nil {
		return
	}
	m.StepsSkipped.Inc()
}
