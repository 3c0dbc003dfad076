package engine

import "github.com/recoverops/dunning/model"

// Schedule partitions a workflow's actions for one case at a given point in
// the overdue timeline: the due actions in declared order, plus counts for
// the actions held back and why.
type Schedule struct {
	Due             []model.WorkflowAction
	NotDue          int
	ConditionFailed int
}

// Skipped returns the number of actions held back, for any reason.
func (s Schedule) Skipped() int {
	return s.NotDue + s.ConditionFailed
}

// BuildSchedule classifies every action of the workflow in one pass.
//
// Actions are evaluated independently: there is no requirement that earlier
// actions have already fired. When the loop has not run for several days,
// several delays can elapse at once and all of those actions become due in a
// single catch-up pass. Each action carries its own dedup key, so declared
// order is only a determinism convenience.
func BuildSchedule(wf model.WorkflowDefinition, c model.Case, daysOverdue int) Schedule {
	var s Schedule
	for _, a := range wf.Actions {
		switch {
		case daysOverdue < a.DelayDays:
			s.NotDue++
		case !a.Condition.Matches(c):
			s.ConditionFailed++
		default:
			s.Due = append(s.Due, a)
		}
	}
	return s
}

// DueActions returns the workflow's actions whose delay has elapsed and whose
// condition (if any) holds for the case, in declared order.
func DueActions(wf model.WorkflowDefinition, c model.Case, daysOverdue int) []model.WorkflowAction {
	return BuildSchedule(wf, c, daysOverdue).Due
}
