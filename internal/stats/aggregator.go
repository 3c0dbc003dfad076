// Package stats builds the read-only statistics rollup over automated action
// records and resolved cases, behind a TTL cache so the HTTP surface never
// hammers the stores.
package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recoverops/dunning/internal/casestore"
	"github.com/recoverops/dunning/internal/records"
	"github.com/recoverops/dunning/model"
)

// Aggregator computes recovery statistics on demand and caches the snapshot
// for the configured TTL.
type Aggregator struct {
	records records.Store
	cases   casestore.CaseStore
	logger  *zap.Logger

	cacheTTL         time.Duration
	resolutionWindow time.Duration

	// Now is the aggregator clock. Tests override it.
	Now func() time.Time

	mu       sync.Mutex
	snapshot model.Stats
	cachedAt time.Time
}

// NewAggregator wires an Aggregator over the record and case stores.
func NewAggregator(
	recordStore records.Store,
	caseStore casestore.CaseStore,
	logger *zap.Logger,
	cacheTTL, resolutionWindow time.Duration,
) *Aggregator {
	return &Aggregator{
		records:          recordStore,
		cases:            caseStore,
		logger:           logger,
		cacheTTL:         cacheTTL,
		resolutionWindow: resolutionWindow,
		Now:              time.Now,
	}
}

// Stats returns the current rollup, recomputing only when the cached snapshot
// has aged past the TTL.
func (a *Aggregator) Stats(ctx context.Context) (model.Stats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.Now()
	if !a.cachedAt.IsZero() && now.Sub(a.cachedAt) < a.cacheTTL {
		return a.snapshot, nil
	}

	snapshot, err := a.compute(ctx, now)
	if err != nil {
		return model.Stats{}, err
	}
	a.snapshot = snapshot
	a.cachedAt = now
	a.logger.Debug("statistics snapshot recomputed",
		zap.Int("total_automated", snapshot.TotalAutomated),
		zap.Float64("success_rate", snapshot.SuccessRate))
	return snapshot, nil
}

// Invalidate drops the cached snapshot so the next read recomputes.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cachedAt = time.Time{}
}

func (a *Aggregator) compute(ctx context.Context, now time.Time) (model.Stats, error) {
	recs, err := a.records.ListAutomated(ctx, time.Time{})
	if err != nil {
		return model.Stats{}, model.NewStoreUnavailableError("listing automated records: " + err.Error())
	}

	s := model.Stats{
		ByChannel:  make(map[model.Channel]int),
		ComputedAt: now.UTC(),
	}

	completed := 0
	for _, rec := range recs {
		s.TotalAutomated++
		s.ByChannel[rec.Channel]++
		if rec.Status == model.RecordStatusCompleted {
			completed++
		}
	}
	if s.TotalAutomated > 0 {
		s.SuccessRate = float64(completed) / float64(s.TotalAutomated)
	}

	resolved, err := a.cases.FindResolvedSince(ctx, now.Add(-a.resolutionWindow))
	if err != nil {
		return model.Stats{}, model.NewStoreUnavailableError("listing resolved cases: " + err.Error())
	}

	var totalDays float64
	counted := 0
	for _, c := range resolved {
		if c.ResolvedAt == nil {
			continue
		}
		totalDays += c.ResolvedAt.Sub(c.DueDate).Hours() / 24
		counted++
	}
	if counted > 0 {
		s.MeanDaysToResolution = totalDays / float64(counted)
	}

	return s, nil
}
