package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ConditionKind enumerates the supported action gating conditions.
type ConditionKind string

const (
	CondAlways        ConditionKind = "always"
	CondAmountBelow   ConditionKind = "amount_below"
	CondAmountAtLeast ConditionKind = "amount_at_least"
	CondDebtorTypeIs  ConditionKind = "debtor_type_is"
)

// Condition is an optional extra gate on a workflow action, expressed as a
// small tagged variant so definitions stay serializable and survive process
// restarts. Amount is required for the amount kinds, DebtorType for
// debtor_type_is.
type Condition struct {
	Kind       ConditionKind    `yaml:"kind"        json:"kind"`
	Amount     *decimal.Decimal `yaml:"amount"      json:"amount,omitempty"`
	DebtorType DebtorType       `yaml:"debtor_type" json:"debtor_type,omitempty"`
}

// Matches evaluates the condition against a case. A nil condition matches
// everything; callers treat absence as "always".
func (c *Condition) Matches(cs Case) bool {
	if c == nil {
		return true
	}
	switch c.Kind {
	case CondAlways, "":
		return true
	case CondAmountBelow:
		return c.Amount != nil && cs.Amount.LessThan(*c.Amount)
	case CondAmountAtLeast:
		return c.Amount != nil && cs.Amount.GreaterThanOrEqual(*c.Amount)
	case CondDebtorTypeIs:
		return cs.DebtorType == c.DebtorType
	}
	return false
}

// Validate checks the condition is structurally complete.
func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Kind {
	case CondAlways, "":
		return nil
	case CondAmountBelow, CondAmountAtLeast:
		if c.Amount == nil {
			return fmt.Errorf("condition %s requires amount", c.Kind)
		}
		return nil
	case CondDebtorTypeIs:
		if c.DebtorType != DebtorIndividual && c.DebtorType != DebtorCompany {
			return fmt.Errorf("condition %s requires debtor_type individual or company", c.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
}
