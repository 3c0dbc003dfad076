// Package casestore provides read access to the practice's debt cases. The
// engine never writes cases; the store is a read-only collaborator owned by
// the case-management side.
package casestore

import (
	"context"
	"time"

	"github.com/recoverops/dunning/model"
)

// CaseStore reads cases for the evaluation loop and the statistics
// aggregator.
type CaseStore interface {
	// FindOverdue returns all cases with status open or in_progress whose
	// due date lies before now.
	FindOverdue(ctx context.Context, now time.Time) ([]model.Case, error)

	// FindResolvedSince returns cases that transitioned to resolved at or
	// after the given time. Used for recovery-time statistics.
	FindResolvedSince(ctx context.Context, since time.Time) ([]model.Case, error)
}
