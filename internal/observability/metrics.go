package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var evaluationDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds all Prometheus metric instruments for the engine.
type Metrics struct {
	// Evaluation loop metrics
	EvaluationsTotal        prometheus.Counter
	EvaluationDuration      prometheus.Histogram
	LastEvaluationTimestamp prometheus.Gauge
	OverdueCases            prometheus.Gauge
	CasesEvaluatedTotal     prometheus.Counter
	CaseFailuresTotal       prometheus.Counter

	// Trigger and dispatch metrics
	WorkflowTriggersTotal  *prometheus.CounterVec
	ActionsDispatchedTotal *prometheus.CounterVec
	ActionsSkippedTotal    *prometheus.CounterVec
	DispatchFailuresTotal  *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dunning_evaluations_total",
			Help: "Total number of evaluation loop runs.",
		}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dunning_evaluation_duration_seconds",
			Help:    "Evaluation loop run duration in seconds.",
			Buckets: evaluationDurationBuckets,
		}),
		LastEvaluationTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dunning_last_evaluation_timestamp_seconds",
			Help: "Unix timestamp of the last completed evaluation run.",
		}),
		OverdueCases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dunning_overdue_cases",
			Help: "Number of overdue cases seen by the last evaluation run.",
		}),
		CasesEvaluatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dunning_cases_evaluated_total",
			Help: "Total number of case evaluations.",
		}),
		CaseFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dunning_case_failures_total",
			Help: "Total number of case evaluations that ended in failure.",
		}),
		WorkflowTriggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_workflow_triggers_total",
			Help: "Total number of workflow trigger matches that claimed an evaluation round.",
		}, []string{"workflow_id"}),
		ActionsDispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_actions_dispatched_total",
			Help: "Total number of actions handed to a delivery channel.",
		}, []string{"workflow_id", "channel"}),
		ActionsSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_actions_skipped_total",
			Help: "Total number of actions skipped before dispatch.",
		}, []string{"reason"}),
		DispatchFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dunning_dispatch_failures_total",
			Help: "Total number of failed dispatch attempts.",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.LastEvaluationTimestamp,
		m.OverdueCases,
		m.CasesEvaluatedTotal,
		m.CaseFailuresTotal,
		m.WorkflowTriggersTotal,
		m.ActionsDispatchedTotal,
		m.ActionsSkippedTotal,
		m.DispatchFailuresTotal,
	)

	return m
}

// Skip reasons for ActionsSkippedTotal.
const (
	SkipReasonAlreadyFired = "already_fired"
	SkipReasonCondition    = "condition"
	SkipReasonNotDue       = "not_due"
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
