package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/recoverops/dunning/internal/casestore"
	"github.com/recoverops/dunning/internal/catalog"
	"github.com/recoverops/dunning/internal/channel"
	"github.com/recoverops/dunning/internal/dedup"
	"github.com/recoverops/dunning/internal/observability"
	"github.com/recoverops/dunning/internal/records"
	"github.com/recoverops/dunning/model"
)

type evalFixture struct {
	evaluator *Evaluator
	cases     *casestore.MemoryCaseStore
	records   *records.MemoryStore
	dedup     *dedup.MemoryStore
	senders   map[model.Channel]*countingSender
	clock     *time.Time
}

// newEvalFixture wires an Evaluator over in-memory stores with a settable
// clock shared by the case store, the dedup store, and the loop itself.
func newEvalFixture(t *testing.T, workflows ...model.WorkflowDefinition) *evalFixture {
	t.Helper()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &start
	nowFn := func() time.Time { return *clock }

	registry := catalog.NewRegistry([]catalog.File{{Workflows: workflows}})
	caseStore := casestore.NewMemoryCaseStore()
	recordStore := records.NewMemoryStore()
	dedupStore := dedup.NewMemoryStore()
	dedupStore.Now = nowFn
	metrics := observability.InitMetrics(prometheus.NewRegistry())
	logger := zaptest.NewLogger(t)

	senders := channel.NewRegistry()
	counting := make(map[model.Channel]*countingSender)
	for _, ch := range model.Channels {
		s := &countingSender{}
		counting[ch] = s
		senders.Register(ch, s)
	}

	dispatcher := NewDispatcher(senders, recordStore, dedupStore, metrics, logger, 7*24*time.Hour)
	dispatcher.now = nowFn

	evaluator := NewEvaluator(registry, caseStore, dispatcher, dedupStore, metrics, logger,
		WithNow(nowFn),
		WithCaseTimeout(time.Second),
	)

	return &evalFixture{
		evaluator: evaluator,
		cases:     caseStore,
		records:   recordStore,
		dedup:     dedupStore,
		senders:   counting,
		clock:     clock,
	}
}

func (f *evalFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *evalFixture) overdueCase(id string, daysOverdue int, amount string, debtor model.DebtorType) model.Case {
	c := model.Case{
		ID:         id,
		Amount:     dec(amount),
		DueDate:    f.clock.Add(-time.Duration(daysOverdue) * 24 * time.Hour),
		DebtorType: debtor,
		Status:     model.CaseStatusOpen,
	}
	f.cases.Put(c)
	return c
}

func (f *evalFixture) totalSends() int {
	n := 0
	for _, s := range f.senders {
		n += s.sendCount()
	}
	return n
}

func TestEvaluateAllCasesDispatchesDueActions(t *testing.T) {
	f := newEvalFixture(t, ladderWorkflow())
	f.overdueCase("case-10", 10, "2500.00", model.DebtorIndividual)

	report, err := f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAllCases() error: %v", err)
	}

	if report.OverdueCases != 1 || report.CasesEvaluated != 1 {
		t.Errorf("report = %+v, want 1 case evaluated", report)
	}
	if report.WorkflowsTriggered != 1 {
		t.Errorf("WorkflowsTriggered = %d, want 1", report.WorkflowsTriggered)
	}
	if report.ActionsDispatched != 1 {
		t.Errorf("ActionsDispatched = %d, want 1", report.ActionsDispatched)
	}
	if f.senders[model.ChannelEmail].sendCount() != 1 {
		t.Errorf("email sends = %d, want 1", f.senders[model.ChannelEmail].sendCount())
	}
	if f.records.Len() != 1 {
		t.Errorf("record store holds %d records, want 1", f.records.Len())
	}
}

func TestEvaluateAllCasesSecondRunWithinWindowIsNoop(t *testing.T) {
	f := newEvalFixture(t, ladderWorkflow())
	f.overdueCase("case-10", 10, "2500.00", model.DebtorIndividual)

	if _, err := f.evaluator.EvaluateAllCases(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// An hour later the workflow-fired marker is still live, so the pair is
	// not even re-examined.
	f.advance(time.Hour)
	report, err := f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.WorkflowsTriggered != 0 {
		t.Errorf("WorkflowsTriggered = %d on second run, want 0", report.WorkflowsTriggered)
	}
	if f.totalSends() != 1 {
		t.Errorf("total sends = %d after two runs, want 1", f.totalSends())
	}
}

func TestEvaluateAllCasesAfterWindowExpiryStillDedupsActions(t *testing.T) {
	f := newEvalFixture(t, ladderWorkflow())
	f.overdueCase("case-10", 10, "2500.00", model.DebtorIndividual)

	if _, err := f.evaluator.EvaluateAllCases(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// 25 hours later the workflow-fired marker expired and the workflow
	// re-claims its round, but the reminder's own week-long marker is still
	// live so nothing is re-sent.
	f.advance(25 * time.Hour)
	report, err := f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.WorkflowsTriggered != 1 {
		t.Errorf("WorkflowsTriggered = %d after marker expiry, want 1", report.WorkflowsTriggered)
	}
	if report.ActionsDispatched != 0 {
		t.Errorf("ActionsDispatched = %d, want 0", report.ActionsDispatched)
	}
	if f.totalSends() != 1 {
		t.Errorf("total sends = %d, want 1", f.totalSends())
	}
}

func TestEvaluateAllCasesCatchUp(t *testing.T) {
	f := newEvalFixture(t, ladderWorkflow())
	f.overdueCase("case-40", 40, "2500.00", model.DebtorIndividual)

	report, err := f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAllCases() error: %v", err)
	}
	if report.ActionsDispatched != 3 {
		t.Errorf("ActionsDispatched = %d for 40-day-old case, want 3", report.ActionsDispatched)
	}
	for _, ch := range []model.Channel{model.ChannelEmail, model.ChannelLetter, model.ChannelCall} {
		if f.senders[ch].sendCount() != 1 {
			t.Errorf("%s sends = %d, want 1", ch, f.senders[ch].sendCount())
		}
	}
	if f.senders[model.ChannelLegal].sendCount() != 0 {
		t.Errorf("legal sends = %d before its delay, want 0", f.senders[model.ChannelLegal].sendCount())
	}
}

func TestEvaluateAllCasesCaseFailureIsolation(t *testing.T) {
	f := newEvalFixture(t, ladderWorkflow())
	f.overdueCase("case-bad", 10, "2500.00", model.DebtorIndividual)
	f.overdueCase("case-good", 10, "900.00", model.DebtorIndividual)

	// Every email send fails, so both cases record a dispatch failure, but
	// the run itself completes and reports rather than aborting.
	f.senders[model.ChannelEmail].failWith(errors.New("smtp unavailable"))

	report, err := f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAllCases() error: %v", err)
	}
	if report.CasesFailed != 2 {
		t.Errorf("CasesFailed = %d, want 2", report.CasesFailed)
	}
	if report.OverdueCases != 2 {
		t.Errorf("OverdueCases = %d, want 2", report.OverdueCases)
	}

	// Claims were released, so once the channel recovers the next window's
	// run retries. Expire the workflow markers first.
	f.senders[model.ChannelEmail].failWith(nil)
	f.advance(25 * time.Hour)
	report, err = f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("recovery run: %v", err)
	}
	if report.ActionsDispatched != 2 {
		t.Errorf("ActionsDispatched = %d on recovery run, want 2", report.ActionsDispatched)
	}
}

func TestEvaluateAllCasesWorkflowClaimedEvenWithNothingDue(t *testing.T) {
	// Trigger floor below the first action delay, so a 5-day-old case
	// matches the workflow but has nothing due yet.
	wf := ladderWorkflow()
	wf.ID = "early-watch"
	wf.Trigger.MinDaysOverdue = 3
	f := newEvalFixture(t, wf)
	f.overdueCase("case-5", 5, "2500.00", model.DebtorIndividual)

	report, err := f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAllCases() error: %v", err)
	}
	if report.WorkflowsTriggered != 1 {
		t.Errorf("WorkflowsTriggered = %d, want 1", report.WorkflowsTriggered)
	}
	if report.ActionsDispatched != 0 {
		t.Errorf("ActionsDispatched = %d, want 0", report.ActionsDispatched)
	}
	// All four ladder actions are still ahead, so all four count as skipped.
	if report.ActionsSkipped != 4 {
		t.Errorf("ActionsSkipped = %d, want 4", report.ActionsSkipped)
	}

	// The round is claimed regardless, capping re-examination frequency.
	held, err := f.dedup.Get(context.Background(), dedup.WorkflowFiredKey("early-watch", "case-5"))
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !held {
		t.Error("workflow-fired marker not claimed when no actions were due")
	}
}

func TestEvaluateAllCasesConcurrentRunsSingleWinner(t *testing.T) {
	f := newEvalFixture(t, ladderWorkflow())
	f.overdueCase("case-10", 10, "2500.00", model.DebtorIndividual)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.evaluator.EvaluateAllCases(context.Background()); err != nil {
				t.Errorf("EvaluateAllCases() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if f.totalSends() != 1 {
		t.Errorf("total sends = %d across concurrent runs, want 1", f.totalSends())
	}
	if f.records.Len() != 1 {
		t.Errorf("record store holds %d records, want 1", f.records.Len())
	}
}

func TestEvaluateAllCasesMultipleWorkflows(t *testing.T) {
	standard := ladderWorkflow()

	highValue := model.WorkflowDefinition{
		ID:     "high-value-company",
		Name:   "High Value Company Recovery",
		Active: true,
		Trigger: model.Trigger{
			MinDaysOverdue: 5,
			AmountMin:      decPtr("10000.00"),
			DebtorType:     model.DebtorCompany,
		},
		Actions: []model.WorkflowAction{
			{ID: "account-manager-call", Channel: model.ChannelCall, DelayDays: 5, TemplateRef: "key-account-call"},
		},
	}

	f := newEvalFixture(t, standard, highValue)
	f.overdueCase("case-big", 10, "25000.00", model.DebtorCompany)

	report, err := f.evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		t.Fatalf("EvaluateAllCases() error: %v", err)
	}

	// Both workflows match the case independently.
	if report.WorkflowsTriggered != 2 {
		t.Errorf("WorkflowsTriggered = %d, want 2", report.WorkflowsTriggered)
	}
	if report.ActionsDispatched != 2 {
		t.Errorf("ActionsDispatched = %d, want 2", report.ActionsDispatched)
	}
	if f.senders[model.ChannelEmail].sendCount() != 1 || f.senders[model.ChannelCall].sendCount() != 1 {
		t.Errorf("sends email=%d call=%d, want 1 each",
			f.senders[model.ChannelEmail].sendCount(), f.senders[model.ChannelCall].sendCount())
	}
}

type failingCaseStore struct{}

func (failingCaseStore) FindOverdue(context.Context, time.Time) ([]model.Case, error) {
	return nil, errors.New("connection refused")
}

func (failingCaseStore) FindResolvedSince(context.Context, time.Time) ([]model.Case, error) {
	return nil, errors.New("connection refused")
}

func TestEvaluateAllCasesStoreUnavailable(t *testing.T) {
	f := newEvalFixture(t, ladderWorkflow())

	ev := NewEvaluator(
		catalog.NewRegistry([]catalog.File{{Workflows: []model.WorkflowDefinition{ladderWorkflow()}}}),
		failingCaseStore{},
		f.evaluator.dispatcher,
		f.dedup,
		observability.InitMetrics(prometheus.NewRegistry()),
		zaptest.NewLogger(t),
	)

	_, err := ev.EvaluateAllCases(context.Background())
	if err == nil {
		t.Fatal("EvaluateAllCases() error = nil with unreachable case store")
	}
	if code := model.CodeOf(err); code != model.ErrStoreUnavailable {
		t.Errorf("error code = %q, want %q", code, model.ErrStoreUnavailable)
	}
}
