package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/recoverops/dunning/internal/channel"
	"github.com/recoverops/dunning/internal/dedup"
	"github.com/recoverops/dunning/internal/observability"
	"github.com/recoverops/dunning/internal/records"
	"github.com/recoverops/dunning/model"
)

// countingSender records sends and returns a configurable error. Both fields
// are safe for use from concurrent case evaluations.
type countingSender struct {
	sends atomic.Int64
	err   atomic.Pointer[error]
}

func (s *countingSender) Send(_ context.Context, _ string, _ model.Case) error {
	s.sends.Add(1)
	if errp := s.err.Load(); errp != nil {
		return *errp
	}
	return nil
}

func (s *countingSender) failWith(err error) {
	if err == nil {
		s.err.Store(nil)
		return
	}
	s.err.Store(&err)
}

func (s *countingSender) sendCount() int {
	return int(s.sends.Load())
}

func newTestDispatcher(t *testing.T, sender channel.Sender) (*Dispatcher, *records.MemoryStore, *dedup.MemoryStore) {
	t.Helper()

	senders := channel.NewRegistry()
	senders.Register(model.ChannelEmail, sender)

	recordStore := records.NewMemoryStore()
	dedupStore := dedup.NewMemoryStore()
	metrics := observability.InitMetrics(prometheus.NewRegistry())

	d := NewDispatcher(senders, recordStore, dedupStore, metrics, zaptest.NewLogger(t), 7*24*time.Hour)
	return d, recordStore, dedupStore
}

func emailAction() model.WorkflowAction {
	return model.WorkflowAction{
		ID:          "reminder-email",
		Channel:     model.ChannelEmail,
		DelayDays:   7,
		TemplateRef: "payment-reminder",
	}
}

func TestDispatcherExecute(t *testing.T) {
	ctx := context.Background()
	sender := &countingSender{}
	d, recordStore, _ := newTestDispatcher(t, sender)

	wf := testWorkflow()
	c := testCase("2500.00", model.DebtorIndividual)

	rec, dispatched, err := d.Execute(ctx, wf, emailAction(), c)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !dispatched {
		t.Fatal("Execute() dispatched = false, want true")
	}
	if sender.sendCount() != 1 {
		t.Errorf("sender invoked %d times, want 1", sender.sendCount())
	}

	if rec == nil {
		t.Fatal("Execute() returned nil record")
	}
	if rec.CaseID != c.ID || rec.WorkflowID != wf.ID || rec.ActionID != "reminder-email" {
		t.Errorf("record identifiers = %s/%s/%s", rec.CaseID, rec.WorkflowID, rec.ActionID)
	}
	if rec.Status != model.RecordStatusScheduled {
		t.Errorf("record status = %q, want %q", rec.Status, model.RecordStatusScheduled)
	}
	if !rec.Automated {
		t.Error("record not marked automated")
	}
	if recordStore.Len() != 1 {
		t.Errorf("record store holds %d records, want 1", recordStore.Len())
	}
}

func TestDispatcherExecuteExactlyOnce(t *testing.T) {
	ctx := context.Background()
	sender := &countingSender{}
	d, recordStore, _ := newTestDispatcher(t, sender)

	wf := testWorkflow()
	c := testCase("2500.00", model.DebtorIndividual)

	if _, dispatched, err := d.Execute(ctx, wf, emailAction(), c); err != nil || !dispatched {
		t.Fatalf("first Execute() = (%v, %v)", dispatched, err)
	}

	// Second attempt within the marker window must be a silent no-op.
	rec, dispatched, err := d.Execute(ctx, wf, emailAction(), c)
	if err != nil {
		t.Fatalf("second Execute() error: %v", err)
	}
	if dispatched {
		t.Error("second Execute() dispatched = true, want skip")
	}
	if rec != nil {
		t.Errorf("second Execute() returned record %+v, want nil", rec)
	}
	if sender.sendCount() != 1 {
		t.Errorf("sender invoked %d times, want 1", sender.sendCount())
	}
	if recordStore.Len() != 1 {
		t.Errorf("record store holds %d records, want 1", recordStore.Len())
	}
}

func TestDispatcherExecuteReleasesClaimOnSendFailure(t *testing.T) {
	ctx := context.Background()
	sender := &countingSender{}
	sender.failWith(errors.New("smtp unavailable"))
	d, recordStore, dedupStore := newTestDispatcher(t, sender)

	wf := testWorkflow()
	c := testCase("2500.00", model.DebtorIndividual)

	_, dispatched, err := d.Execute(ctx, wf, emailAction(), c)
	if err == nil {
		t.Fatal("Execute() error = nil, want channel rejection")
	}
	if dispatched {
		t.Error("Execute() dispatched = true after send failure")
	}
	if code := model.CodeOf(err); code != model.ErrChannelRejected {
		t.Errorf("error code = %q, want %q", code, model.ErrChannelRejected)
	}
	if recordStore.Len() != 0 {
		t.Errorf("record store holds %d records after failed send, want 0", recordStore.Len())
	}

	// The claim must be released so the next cycle can retry.
	held, err := dedupStore.Get(ctx, dedup.ActionFiredKey("reminder-email", c.ID))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if held {
		t.Error("action-fired marker still held after failed send")
	}

	// Channel recovers; the retry goes through.
	sender.failWith(nil)
	if _, dispatched, err := d.Execute(ctx, wf, emailAction(), c); err != nil || !dispatched {
		t.Fatalf("retry Execute() = (%v, %v), want successful dispatch", dispatched, err)
	}
	if sender.sendCount() != 2 {
		t.Errorf("sender invoked %d times, want 2", sender.sendCount())
	}
}

func TestDispatcherExecuteUnknownChannel(t *testing.T) {
	ctx := context.Background()
	d, _, dedupStore := newTestDispatcher(t, &countingSender{})

	wf := testWorkflow()
	c := testCase("2500.00", model.DebtorIndividual)
	action := emailAction()
	action.Channel = model.ChannelLegal

	if _, _, err := d.Execute(ctx, wf, action, c); err == nil {
		t.Fatal("Execute() error = nil for unregistered channel")
	}

	held, err := dedupStore.Get(ctx, dedup.ActionFiredKey(action.ID, c.ID))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if held {
		t.Error("marker held after lookup failure")
	}
}
