// Package records persists the ActionRecord audit trail: one row per
// dispatched recovery action. The engine creates records as scheduled; the
// delivery side later moves them to completed or failed.
package records

import (
	"context"
	"time"

	"github.com/recoverops/dunning/model"
)

// Store is the ActionRecord sink and the read side for statistics.
type Store interface {
	// Create persists a new action record. Returns CONFLICT if the record
	// ID already exists.
	Create(ctx context.Context, rec model.ActionRecord) error

	// UpdateStatus moves a record to completed or failed. Called by the
	// delivery side, asynchronously from the engine.
	UpdateStatus(ctx context.Context, id, status string) error

	// ListAutomated returns all automated records created at or after
	// since, in creation order.
	ListAutomated(ctx context.Context, since time.Time) ([]model.ActionRecord, error)
}
