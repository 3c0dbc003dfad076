package catalog

import (
	"fmt"

	"github.com/recoverops/dunning/model"
)

// VError describes a single validation error in a definition file.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator checks workflow definitions structurally and referentially.
// Any error is fatal at load time: the evaluation loop must not start
// against a malformed catalog.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks all definition files, including cross-file workflow ID
// uniqueness.
func (v *Validator) Validate(files []File) []VError {
	var errs []VError

	seen := make(map[string]string)
	for i, f := range files {
		prefix := fmt.Sprintf("files[%d]", i)
		if f.SourceFile != "" {
			prefix = f.SourceFile
		}
		for j, wf := range f.Workflows {
			wp := fmt.Sprintf("%s.workflows[%d]", prefix, j)
			errs = append(errs, v.validateWorkflow(wp, wf)...)

			if wf.ID != "" {
				if prev, dup := seen[wf.ID]; dup {
					errs = append(errs, VError{
						Path:    wp + ".id",
						Code:    "DUPLICATE",
						Message: fmt.Sprintf("workflow id %q already defined at %s", wf.ID, prev),
					})
				} else {
					seen[wf.ID] = wp
				}
			}
		}
	}

	return errs
}

func (v *Validator) validateWorkflow(prefix string, wf model.WorkflowDefinition) []VError {
	var errs []VError

	if wf.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
	}
	if wf.Name == "" {
		errs = append(errs, VError{Path: prefix + ".name", Code: "REQUIRED", Message: "name is required"})
	}
	if len(wf.Actions) == 0 {
		errs = append(errs, VError{Path: prefix + ".actions", Code: "REQUIRED", Message: "at least one action is required"})
	}

	errs = append(errs, v.validateTrigger(prefix+".trigger", wf.Trigger)...)

	actionIDs := make(map[string]bool)
	for i, a := range wf.Actions {
		ap := fmt.Sprintf("%s.actions[%d]", prefix, i)
		errs = append(errs, v.validateAction(ap, a)...)

		if a.ID != "" {
			if actionIDs[a.ID] {
				errs = append(errs, VError{
					Path:    ap + ".id",
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("action id %q duplicated within workflow", a.ID),
				})
			}
			actionIDs[a.ID] = true
		}
	}

	return errs
}

func (v *Validator) validateTrigger(prefix string, tr model.Trigger) []VError {
	var errs []VError

	if tr.MinDaysOverdue < 0 {
		errs = append(errs, VError{Path: prefix + ".min_days_overdue", Code: "INVALID", Message: "min_days_overdue must not be negative"})
	}
	switch tr.DebtorType {
	case model.DebtorIndividual, model.DebtorCompany, model.DebtorAll:
	case "":
		errs = append(errs, VError{Path: prefix + ".debtor_type", Code: "REQUIRED", Message: "debtor_type is required (individual, company, or all)"})
	default:
		errs = append(errs, VError{Path: prefix + ".debtor_type", Code: "INVALID", Message: fmt.Sprintf("unknown debtor_type %q", tr.DebtorType)})
	}
	if tr.AmountMin != nil && tr.AmountMin.IsNegative() {
		errs = append(errs, VError{Path: prefix + ".amount_min", Code: "INVALID", Message: "amount_min must not be negative"})
	}
	if tr.AmountMax != nil && tr.AmountMax.IsNegative() {
		errs = append(errs, VError{Path: prefix + ".amount_max", Code: "INVALID", Message: "amount_max must not be negative"})
	}
	if tr.AmountMin != nil && tr.AmountMax != nil && tr.AmountMin.GreaterThan(*tr.AmountMax) {
		errs = append(errs, VError{Path: prefix, Code: "INVALID_RANGE", Message: "amount_min must not exceed amount_max"})
	}

	return errs
}

func (v *Validator) validateAction(prefix string, a model.WorkflowAction) []VError {
	var errs []VError

	if a.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
	}
	if !a.Channel.Valid() {
		errs = append(errs, VError{Path: prefix + ".channel", Code: "INVALID", Message: fmt.Sprintf("unknown channel %q", a.Channel)})
	}
	if a.DelayDays < 0 {
		errs = append(errs, VError{Path: prefix + ".delay_days", Code: "INVALID", Message: "delay_days must not be negative"})
	}
	if a.TemplateRef == "" {
		errs = append(errs, VError{Path: prefix + ".template", Code: "REQUIRED", Message: "template is required"})
	}
	if err := a.Condition.Validate(); err != nil {
		errs = append(errs, VError{Path: prefix + ".condition", Code: "INVALID", Message: err.Error()})
	}

	return errs
}
