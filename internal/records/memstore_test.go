package records

import (
	"context"
	"testing"
	"time"

	"github.com/recoverops/dunning/model"
)

var base = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testRecord(id string, createdAt time.Time, automated bool) model.ActionRecord {
	return model.ActionRecord{
		ID:          id,
		CaseID:      "case-1",
		WorkflowID:  "standard-recovery",
		ActionID:    "email-7d",
		Channel:     model.ChannelEmail,
		TemplateRef: "reminder-friendly",
		Status:      model.RecordStatusScheduled,
		CreatedAt:   createdAt,
		Automated:   automated,
	}
}

func TestMemoryStore_CreateAndDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, testRecord("rec-1", base, true)); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}

	err := store.Create(ctx, testRecord("rec-1", base, true))
	if err == nil {
		t.Fatal("expected conflict for duplicate")
	}
	if model.CodeOf(err) != model.ErrConflict {
		t.Errorf("code = %s, want %s", model.CodeOf(err), model.ErrConflict)
	}
}

func TestMemoryStore_UpdateStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, testRecord("rec-1", base, true))

	if err := store.UpdateStatus(ctx, "rec-1", model.RecordStatusCompleted); err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	recs, _ := store.ListAutomated(ctx, base.AddDate(0, 0, -1))
	if len(recs) != 1 || recs[0].Status != model.RecordStatusCompleted {
		t.Errorf("records = %+v", recs)
	}
}

func TestMemoryStore_UpdateStatus_invalid(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, testRecord("rec-1", base, true))

	if err := store.UpdateStatus(ctx, "rec-1", "delivered"); model.CodeOf(err) != model.ErrConflict {
		t.Errorf("err = %v, want conflict", err)
	}
	if err := store.UpdateStatus(ctx, "missing", model.RecordStatusFailed); model.CodeOf(err) != model.ErrNotFound {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestMemoryStore_ListAutomated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Create(ctx, testRecord("rec-new", base, true))
	_ = store.Create(ctx, testRecord("rec-old", base.AddDate(0, 0, -10), true))
	_ = store.Create(ctx, testRecord("rec-manual", base, false))

	recs, err := store.ListAutomated(ctx, base.AddDate(0, 0, -5))
	if err != nil {
		t.Fatalf("ListAutomated error: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "rec-new" {
		t.Errorf("records = %+v, want only rec-new", recs)
	}
}
