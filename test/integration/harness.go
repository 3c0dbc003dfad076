// Package integration provides a reusable test harness for end-to-end
// testing of the dunning engine. It wires the evaluation loop, in-memory
// stores, scripted delivery channels, and the full HTTP router behind an
// httptest server.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/recoverops/dunning/internal/casestore"
	"github.com/recoverops/dunning/internal/catalog"
	"github.com/recoverops/dunning/internal/channel"
	"github.com/recoverops/dunning/internal/dedup"
	"github.com/recoverops/dunning/internal/engine"
	"github.com/recoverops/dunning/internal/observability"
	"github.com/recoverops/dunning/internal/records"
	"github.com/recoverops/dunning/internal/stats"
	"github.com/recoverops/dunning/internal/transport"
	"github.com/recoverops/dunning/model"
)

// Harness encapsulates a fully wired engine instance for integration
// testing. The clock is fixed at construction and advanced explicitly, so
// tests never sleep.
type Harness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Registry  *catalog.Registry
	Cases     *casestore.MemoryCaseStore
	Records   *records.MemoryStore
	Dedup     *dedup.MemoryStore
	Evaluator *engine.Evaluator
	Senders   map[model.Channel]*ScriptedSender

	mu  sync.Mutex
	now time.Time
}

// ScriptedSender records sends and fails on demand.
type ScriptedSender struct {
	mu    sync.Mutex
	sends []string // template refs, in send order
	err   error
}

func (s *ScriptedSender) Send(_ context.Context, templateRef string, _ model.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, templateRef)
	return s.err
}

// Fail makes subsequent sends return err. Pass nil to recover the channel.
func (s *ScriptedSender) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Sends returns the template refs sent so far.
func (s *ScriptedSender) Sends() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sends...)
}

// NewHarness wires an engine over the given workflows. Validation failures
// in the workflows fail the test immediately.
func NewHarness(t *testing.T, workflows ...model.WorkflowDefinition) *Harness {
	t.Helper()

	files := []catalog.File{{Workflows: workflows, SourceFile: "harness.yaml"}}
	if verrs := catalog.NewValidator().Validate(files); len(verrs) > 0 {
		t.Fatalf("harness workflows invalid: %v", verrs)
	}

	h := &Harness{
		t:        t,
		Registry: catalog.NewRegistry(files),
		Cases:    casestore.NewMemoryCaseStore(),
		Records:  records.NewMemoryStore(),
		Dedup:    dedup.NewMemoryStore(),
		Senders:  make(map[model.Channel]*ScriptedSender),
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	h.Dedup.Now = h.Now

	logger := zaptest.NewLogger(t)
	metrics := observability.InitMetrics(prometheus.NewRegistry())

	senders := channel.NewRegistry()
	for _, ch := range model.Channels {
		s := &ScriptedSender{}
		h.Senders[ch] = s
		senders.Register(ch, s)
	}

	dispatcher := engine.NewDispatcher(senders, h.Records, h.Dedup, metrics, logger, 7*24*time.Hour)
	h.Evaluator = engine.NewEvaluator(h.Registry, h.Cases, dispatcher, h.Dedup, metrics, logger,
		engine.WithNow(h.Now),
		engine.WithCaseTimeout(time.Second),
	)

	aggregator := stats.NewAggregator(h.Records, h.Cases, logger, 30*time.Minute, 90*24*time.Hour)
	aggregator.Now = h.Now

	router := transport.NewRouter(transport.Dependencies{
		Registry:      h.Registry,
		Logger:        logger,
		HealthHandler: observability.HandleHealth(),
		ReadyHandler: observability.HandleReady(observability.ReadinessChecks{
			CatalogLoaded: func() bool { return h.Registry.Len() > 0 },
		}),
		MetricsHandler: observability.Handler(),
		Stats:          aggregator,
		HandlerTimeout: 5 * time.Second,
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// Now is the harness clock.
func (h *Harness) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// Advance moves the harness clock forward.
func (h *Harness) Advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

// AddCase seeds an open case that went overdue the given number of days ago.
func (h *Harness) AddCase(id string, daysOverdue int, amount string, debtor model.DebtorType) model.Case {
	h.t.Helper()

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		h.t.Fatalf("bad amount %q: %v", amount, err)
	}
	c := model.Case{
		ID:         id,
		Amount:     amt,
		DueDate:    h.Now().Add(-time.Duration(daysOverdue) * 24 * time.Hour),
		DebtorType: debtor,
		Status:     model.CaseStatusOpen,
	}
	h.Cases.Put(c)
	return c
}

// Evaluate runs one evaluation pass and fails the test on a run-level error.
func (h *Harness) Evaluate() engine.Report {
	h.t.Helper()

	report, err := h.Evaluator.EvaluateAllCases(context.Background())
	if err != nil {
		h.t.Fatalf("EvaluateAllCases() error: %v", err)
	}
	return report
}

// GetJSON performs a GET against the harness server and decodes the JSON
// response body into out. Returns the HTTP status code.
func (h *Harness) GetJSON(path string, out any) int {
	h.t.Helper()

	resp, err := http.Get(h.server.URL + path)
	if err != nil {
		h.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			h.t.Fatalf("reading %s response: %v", path, err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			h.t.Fatalf("decoding %s response %q: %v", path, body, err)
		}
	}
	return resp.StatusCode
}
