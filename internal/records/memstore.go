package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/recoverops/dunning/model"
)

// MemoryStore is an in-memory record Store for testing and single-instance
// deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.ActionRecord
}

// NewMemoryStore creates a new in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.ActionRecord)}
}

// Create persists a new action record.
func (s *MemoryStore) Create(_ context.Context, rec model.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("action record %q already exists", rec.ID))
	}
	s.records[rec.ID] = rec
	return nil
}

// UpdateStatus moves a record to completed or failed.
func (s *MemoryStore) UpdateStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return model.NewNotFoundError(fmt.Sprintf("action record %q not found", id))
	}
	if status != model.RecordStatusCompleted && status != model.RecordStatusFailed {
		return model.NewConflictError(fmt.Sprintf("invalid record status %q", status))
	}
	rec.Status = status
	s.records[id] = rec
	return nil
}

// ListAutomated returns automated records created at or after since, in
// creation order.
func (s *MemoryStore) ListAutomated(_ context.Context, since time.Time) ([]model.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ActionRecord
	for _, rec := range s.records {
		if !rec.Automated || rec.CreatedAt.Before(since) {
			continue
		}
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Len returns the number of records. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
