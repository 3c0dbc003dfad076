// Package engine implements the recovery workflow automation core: trigger
// matching, delayed action scheduling, idempotent dispatch, and the periodic
// evaluation loop that ties them together.
package engine

import "github.com/recoverops/dunning/model"

// ShouldTrigger reports whether a workflow is eligible to fire for a case at
// the given overdue age. It is a pure predicate with no side effects; the
// evaluation loop separately claims the workflow's daily idempotency marker,
// so a marker check does not belong here.
func ShouldTrigger(wf model.WorkflowDefinition, c model.Case, daysOverdue int) bool {
	if !wf.Active {
		return false
	}
	if daysOverdue < wf.Trigger.MinDaysOverdue {
		return false
	}
	if wf.Trigger.AmountMin != nil && c.Amount.LessThan(*wf.Trigger.AmountMin) {
		return false
	}
	if wf.Trigger.AmountMax != nil && c.Amount.GreaterThan(*wf.Trigger.AmountMax) {
		return false
	}
	if wf.Trigger.DebtorType != model.DebtorAll && wf.Trigger.DebtorType != c.DebtorType {
		return false
	}
	return true
}
