// Package model defines the domain types shared across the recovery engine:
// cases, workflow definitions, action records, statistics, and the error
// taxonomy.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DebtorType classifies the debtor on a case.
type DebtorType string

const (
	DebtorIndividual DebtorType = "individual"
	DebtorCompany    DebtorType = "company"

	// DebtorAll is only valid in workflow triggers and matches any debtor.
	DebtorAll DebtorType = "all"
)

// Case status values. The engine only ever evaluates open and in_progress
// cases; resolved and cancelled appear in statistics queries.
const (
	CaseStatusOpen       = "open"
	CaseStatusInProgress = "in_progress"
	CaseStatusResolved   = "resolved"
	CaseStatusCancelled  = "cancelled"
)

// Case is a debt-recovery case as read from the case store. The engine never
// mutates cases; ownership stays with the practice-management side.
type Case struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	DueDate    time.Time       `json:"due_date"`
	DebtorType DebtorType      `json:"debtor_type"`
	Status     string          `json:"status"`

	// ResolvedAt is set by the case store once a case transitions to
	// resolved. Used only for recovery-time statistics.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// DaysOverdue returns the whole days elapsed between the case's due date and
// now. Negative values mean the case is not yet due.
func (c Case) DaysOverdue(now time.Time) int {
	return int(now.Sub(c.DueDate).Hours() / 24)
}

// Evaluable reports whether the engine should consider this case at all:
// open or in progress, and past its due date.
func (c Case) Evaluable(now time.Time) bool {
	if c.Status != CaseStatusOpen && c.Status != CaseStatusInProgress {
		return false
	}
	return c.DueDate.Before(now)
}
