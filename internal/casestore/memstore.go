package casestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/recoverops/dunning/model"
)

// MemoryCaseStore is an in-memory CaseStore for testing and demos.
type MemoryCaseStore struct {
	mu    sync.RWMutex
	cases map[string]model.Case
}

// NewMemoryCaseStore creates an in-memory case store seeded with the given
// cases.
func NewMemoryCaseStore(cases ...model.Case) *MemoryCaseStore {
	s := &MemoryCaseStore{cases: make(map[string]model.Case, len(cases))}
	for _, c := range cases {
		s.cases[c.ID] = c
	}
	return s
}

// Put inserts or replaces a case. For testing.
func (s *MemoryCaseStore) Put(c model.Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[c.ID] = c
}

// FindOverdue returns open/in_progress cases past their due date, sorted by
// case ID for deterministic iteration.
func (s *MemoryCaseStore) FindOverdue(_ context.Context, now time.Time) ([]model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Case
	for _, c := range s.cases {
		if c.Evaluable(now) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// FindResolvedSince returns resolved cases with ResolvedAt at or after since.
func (s *MemoryCaseStore) FindResolvedSince(_ context.Context, since time.Time) ([]model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Case
	for _, c := range s.cases {
		if c.Status != model.CaseStatusResolved || c.ResolvedAt == nil {
			continue
		}
		if c.ResolvedAt.Before(since) {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
