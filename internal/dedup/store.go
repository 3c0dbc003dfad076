// Package dedup provides the TTL-bounded idempotency store that prevents a
// workflow or action from firing twice for the same case. Markers live in two
// namespaces: workflow-fired (one evaluation round per day) and action-fired
// (one dispatch per week).
package dedup

import (
	"context"
	"fmt"
	"time"
)

// Store is the idempotency/cache collaborator. SetIfAbsent is the primitive
// the engine relies on for correctness: claiming a marker and checking for a
// previous claim must be one atomic operation, otherwise two overlapping
// evaluation runs can both dispatch the same action.
type Store interface {
	// Get reports whether key holds an unexpired marker.
	Get(ctx context.Context, key string) (bool, error)

	// SetWithTTL unconditionally writes a marker that expires after ttl.
	SetWithTTL(ctx context.Context, key string, ttl time.Duration) error

	// SetIfAbsent atomically writes a marker only if key is absent or
	// expired. Returns true if the marker was claimed by this call.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Delete removes a marker. Used to release a claim after an outright
	// dispatch failure so the next cycle can retry.
	Delete(ctx context.Context, key string) error
}

// WorkflowFiredKey builds the marker key recording that a workflow's
// evaluation round ran for a case.
func WorkflowFiredKey(workflowID, caseID string) string {
	return fmt.Sprintf("workflow-fired:%s:%s", workflowID, caseID)
}

// ActionFiredKey builds the marker key recording that an action was
// dispatched for a case.
func ActionFiredKey(actionID, caseID string) string {
	return fmt.Sprintf("action-fired:%s:%s", actionID, caseID)
}
