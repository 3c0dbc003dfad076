package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var evalNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestCase_DaysOverdue(t *testing.T) {
	tests := []struct {
		name    string
		dueDate time.Time
		want    int
	}{
		{"due 14 days ago", evalNow.AddDate(0, 0, -14), 14},
		{"due yesterday", evalNow.AddDate(0, 0, -1), 1},
		{"due 12 hours ago floors to zero", evalNow.Add(-12 * time.Hour), 0},
		{"due 36 hours ago floors to one", evalNow.Add(-36 * time.Hour), 1},
		{"not yet due", evalNow.AddDate(0, 0, 3), -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Case{DueDate: tt.dueDate}
			if got := c.DaysOverdue(evalNow); got != tt.want {
				t.Errorf("DaysOverdue() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCase_Evaluable(t *testing.T) {
	overdue := evalNow.AddDate(0, 0, -5)

	tests := []struct {
		name    string
		status  string
		dueDate time.Time
		want    bool
	}{
		{"open overdue", CaseStatusOpen, overdue, true},
		{"in_progress overdue", CaseStatusInProgress, overdue, true},
		{"resolved overdue", CaseStatusResolved, overdue, false},
		{"cancelled overdue", CaseStatusCancelled, overdue, false},
		{"open not yet due", CaseStatusOpen, evalNow.AddDate(0, 0, 5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Case{
				Amount:     decimal.New(100, 0),
				Status:     tt.status,
				DueDate:    tt.dueDate,
				DebtorType: DebtorIndividual,
			}
			if got := c.Evaluable(evalNow); got != tt.want {
				t.Errorf("Evaluable() = %v, want %v", got, tt.want)
			}
		})
	}
}
