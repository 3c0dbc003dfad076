package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/recoverops/dunning/internal/casestore"
	"github.com/recoverops/dunning/internal/catalog"
	"github.com/recoverops/dunning/internal/dedup"
	"github.com/recoverops/dunning/internal/observability"
	"github.com/recoverops/dunning/model"
)

// Report summarizes one evaluation run.
type Report struct {
	OverdueCases       int
	CasesEvaluated     int
	CasesFailed        int
	WorkflowsTriggered int
	ActionsDispatched  int
	ActionsSkipped     int
	Duration           time.Duration
}

// Evaluator drives the periodic evaluation loop: it fetches overdue cases,
// matches them against the workflow catalog, and hands due actions to the
// Dispatcher. Cases are evaluated concurrently up to a bounded limit, each
// under its own timeout, and one case's failure never aborts the run.
type Evaluator struct {
	registry   *catalog.Registry
	cases      casestore.CaseStore
	dispatcher *Dispatcher
	dedup      dedup.Store
	metrics    *observability.Metrics
	logger     *zap.Logger

	now            func() time.Time
	caseTimeout    time.Duration
	maxConcurrency int
	workflowTTL    time.Duration
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithNow overrides the evaluation clock. Tests use this to pin daysOverdue
// arithmetic to a fixed instant.
func WithNow(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithCaseTimeout bounds how long a single case's evaluation may run.
func WithCaseTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.caseTimeout = d }
}

// WithMaxConcurrency bounds how many cases are evaluated in parallel.
func WithMaxConcurrency(n int) Option {
	return func(e *Evaluator) { e.maxConcurrency = n }
}

// WithWorkflowFiredTTL sets the workflow-fired marker lifetime.
func WithWorkflowFiredTTL(d time.Duration) Option {
	return func(e *Evaluator) { e.workflowTTL = d }
}

// NewEvaluator creates an Evaluator with sensible defaults: hourly-loop
// callers typically keep the 5s case timeout and concurrency of 8.
func NewEvaluator(
	registry *catalog.Registry,
	caseStore casestore.CaseStore,
	dispatcher *Dispatcher,
	dedupStore dedup.Store,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *Evaluator {
	e := &Evaluator{
		registry:       registry,
		cases:          caseStore,
		dispatcher:     dispatcher,
		dedup:          dedupStore,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
		caseTimeout:    5 * time.Second,
		maxConcurrency: 8,
		workflowTTL:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runCounters collects per-run tallies across the case goroutines.
type runCounters struct {
	casesFailed        atomic.Int64
	workflowsTriggered atomic.Int64
	actionsDispatched  atomic.Int64
	actionsSkipped     atomic.Int64
}

// EvaluateAllCases runs one full evaluation cycle over every overdue case.
// It returns a non-nil error only when the run could not proceed at all,
// such as the case store being unreachable; individual case failures are
// counted in the Report and logged, not propagated.
func (e *Evaluator) EvaluateAllCases(ctx context.Context) (_ Report, err error) {
	ctx, span := observability.StartSpan(ctx, "engine.evaluate_all_cases")
	defer func() { observability.EndSpanWithError(span, err) }()

	start := e.now()

	overdue, err := e.cases.FindOverdue(ctx, start)
	if err != nil {
		return Report{}, model.NewStoreUnavailableError(
			fmt.Sprintf("fetching overdue cases: %v", err),
		)
	}
	e.metrics.OverdueCases.Set(float64(len(overdue)))

	var counters runCounters

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for _, c := range overdue {
		c := c
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, e.caseTimeout)
			defer cancel()

			if err := e.evaluateCase(cctx, c, start, &counters); err != nil {
				counters.casesFailed.Add(1)
				e.metrics.CaseFailuresTotal.Inc()
				e.logger.Error("case evaluation failed",
					zap.String("case_id", c.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	elapsed := e.now().Sub(start)
	report := Report{
		OverdueCases:       len(overdue),
		CasesEvaluated:     len(overdue) - int(counters.casesFailed.Load()),
		CasesFailed:        int(counters.casesFailed.Load()),
		WorkflowsTriggered: int(counters.workflowsTriggered.Load()),
		ActionsDispatched:  int(counters.actionsDispatched.Load()),
		ActionsSkipped:     int(counters.actionsSkipped.Load()),
		Duration:           elapsed,
	}

	span.SetAttributes(
		observability.AttrOverdue.Int(report.OverdueCases),
		observability.AttrDispatched.Int(report.ActionsDispatched),
		observability.AttrSkipped.Int(report.ActionsSkipped),
	)

	e.metrics.EvaluationsTotal.Inc()
	e.metrics.EvaluationDuration.Observe(elapsed.Seconds())
	e.metrics.LastEvaluationTimestamp.SetToCurrentTime()
	e.metrics.CasesEvaluatedTotal.Add(float64(report.CasesEvaluated))

	e.logger.Info("evaluation run complete",
		zap.Int("overdue_cases", report.OverdueCases),
		zap.Int("cases_failed", report.CasesFailed),
		zap.Int("workflows_triggered", report.WorkflowsTriggered),
		zap.Int("actions_dispatched", report.ActionsDispatched),
		zap.Int("actions_skipped", report.ActionsSkipped),
		zap.Duration("duration", elapsed))

	return report, nil
}

// evaluateCase matches one case against every catalog workflow. A matching
// workflow first claims its workflow-fired marker; losing the claim means
// another run already evaluated this pair within the window, so the workflow
// is skipped wholesale. The claim is taken even when no actions turn out to
// be due, which caps how often the same pair is re-examined.
func (e *Evaluator) evaluateCase(ctx context.Context, c model.Case, now time.Time, counters *runCounters) (err error) {
	daysOverdue := c.DaysOverdue(now)

	ctx, span := observability.StartSpan(ctx, "engine.evaluate_case",
		observability.AttrCaseID.String(c.ID),
		observability.AttrDaysOverdue.Int(daysOverdue),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	log := observability.CaseLogger(e.logger, c.ID, daysOverdue)

	var errs []error
	for _, wf := range e.registry.Workflows() {
		if !ShouldTrigger(wf, c, daysOverdue) {
			continue
		}

		claimed, err := e.dedup.SetIfAbsent(ctx, dedup.WorkflowFiredKey(wf.ID, c.ID), e.workflowTTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("workflow %s: %w", wf.ID, err))
			continue
		}
		if !claimed {
			log.Debug("workflow already evaluated within window",
				zap.String("workflow_id", wf.ID))
			continue
		}

		counters.workflowsTriggered.Add(1)
		e.metrics.WorkflowTriggersTotal.WithLabelValues(wf.ID).Inc()

		sched := BuildSchedule(wf, c, daysOverdue)
		counters.actionsSkipped.Add(int64(sched.Skipped()))
		if sched.NotDue > 0 {
			e.metrics.ActionsSkippedTotal.WithLabelValues(observability.SkipReasonNotDue).Add(float64(sched.NotDue))
		}
		if sched.ConditionFailed > 0 {
			e.metrics.ActionsSkippedTotal.WithLabelValues(observability.SkipReasonCondition).Add(float64(sched.ConditionFailed))
		}

		for _, action := range sched.Due {
			_, dispatched, err := e.dispatcher.Execute(ctx, wf, action, c)
			if err != nil {
				errs = append(errs, fmt.Errorf("action %s: %w", action.ID, err))
				continue
			}
			if dispatched {
				counters.actionsDispatched.Add(1)
			} else {
				counters.actionsSkipped.Add(1)
			}
		}
	}
	return errors.Join(errs...)
}
