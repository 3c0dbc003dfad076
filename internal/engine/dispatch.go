package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recoverops/dunning/internal/channel"
	"github.com/recoverops/dunning/internal/dedup"
	"github.com/recoverops/dunning/internal/observability"
	"github.com/recoverops/dunning/internal/records"
	"github.com/recoverops/dunning/model"
)

// Dispatcher executes due actions: it claims the per-action idempotency
// marker, hands the action to its delivery channel, and records an
// ActionRecord for the audit trail.
type Dispatcher struct {
	senders *channel.Registry
	records records.Store
	dedup   dedup.Store
	metrics *observability.Metrics
	logger  *zap.Logger

	actionTTL time.Duration
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher. actionTTL is the action-fired marker
// lifetime; within it the same (action, case) pair is never dispatched twice.
func NewDispatcher(
	senders *channel.Registry,
	recordStore records.Store,
	dedupStore dedup.Store,
	metrics *observability.Metrics,
	logger *zap.Logger,
	actionTTL time.Duration,
) *Dispatcher {
	return &Dispatcher{
		senders:   senders,
		records:   recordStore,
		dedup:     dedupStore,
		metrics:   metrics,
		logger:    logger,
		actionTTL: actionTTL,
		now:       time.Now,
	}
}

// Execute dispatches one action for one case. It returns the created record
// and dispatched=true on success, or (nil, false, nil) when the action's
// idempotency marker is already held and the dispatch is skipped.
//
// The marker claim is a single atomic set-if-absent: claiming and checking
// for a previous claim in one round trip is what keeps concurrent evaluation
// runs from double-sending. If the send itself is rejected the claim is
// released so the next cycle can retry; if only the record write fails the
// claim is kept, trading an occasional missing audit row for never sending a
// notice twice.
func (d *Dispatcher) Execute(
	ctx context.Context,
	wf model.WorkflowDefinition,
	action model.WorkflowAction,
	c model.Case,
) (*model.ActionRecord, bool, error) {
	key := dedup.ActionFiredKey(action.ID, c.ID)
	log := d.logger.With(
		zap.String("workflow_id", wf.ID),
		zap.String("action_id", action.ID),
		zap.String("case_id", c.ID),
		zap.String("channel", string(action.Channel)),
	)

	claimed, err := d.dedup.SetIfAbsent(ctx, key, d.actionTTL)
	if err != nil {
		return nil, false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		d.metrics.ActionsSkippedTotal.WithLabelValues(observability.SkipReasonAlreadyFired).Inc()
		log.Debug("action already fired within dedup window, skipping")
		return nil, false, nil
	}

	sender, err := d.senders.Lookup(action.Channel)
	if err != nil {
		d.release(ctx, key, log)
		return nil, false, err
	}

	if err := sender.Send(ctx, action.TemplateRef, c); err != nil {
		d.metrics.DispatchFailuresTotal.WithLabelValues(string(action.Channel)).Inc()
		d.release(ctx, key, log)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, false, model.NewDispatchTimeoutError(
				fmt.Sprintf("channel %s timed out for case %s", action.Channel, c.ID),
			)
		}
		return nil, false, model.NewChannelRejectedError(
			fmt.Sprintf("channel %s rejected action %s for case %s: %v", action.Channel, action.ID, c.ID, err),
		)
	}

	rec := model.ActionRecord{
		ID:          uuid.New().String(),
		CaseID:      c.ID,
		WorkflowID:  wf.ID,
		ActionID:    action.ID,
		Channel:     action.Channel,
		TemplateRef: action.TemplateRef,
		Status:      model.RecordStatusScheduled,
		CreatedAt:   d.now().UTC(),
		Automated:   true,
	}
	if err := d.records.Create(ctx, rec); err != nil {
		// The send already happened; keep the marker and accept the
		// missing audit row rather than risking a duplicate send.
		log.Warn("action record write failed after successful send", zap.Error(err))
	}

	d.metrics.ActionsDispatchedTotal.WithLabelValues(wf.ID, string(action.Channel)).Inc()
	log.Info("action dispatched", zap.String("template", action.TemplateRef))

	return &rec, true, nil
}

// release undoes a marker claim after a failed dispatch, best effort.
func (d *Dispatcher) release(ctx context.Context, key string, log *zap.Logger) {
	if err := d.dedup.Delete(ctx, key); err != nil {
		log.Warn("failed to release dedup marker after dispatch failure",
			zap.String("key", key), zap.Error(err))
	}
}
