package model

import "github.com/shopspring/decimal"

// Channel identifies the delivery mechanism for a recovery action.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelSMS    Channel = "sms"
	ChannelCall   Channel = "call"
	ChannelLetter Channel = "letter"
	ChannelLegal  Channel = "legal"
)

// Channels lists every known channel in escalation order.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelCall, ChannelLetter, ChannelLegal}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelCall, ChannelLetter, ChannelLegal:
		return true
	}
	return false
}

// WorkflowDefinition is a declarative recovery workflow: an eligibility
// trigger plus an ordered list of delay-offset actions. Definitions are
// loaded once at process start and never mutated.
//
// Multiple definitions may match the same case simultaneously; there is no
// precedence between them. Narrow and wide bands are meant to compose.
type WorkflowDefinition struct {
	ID      string           `yaml:"id"      json:"id"`
	Name    string           `yaml:"name"    json:"name"`
	Active  bool             `yaml:"active"  json:"active"`
	Trigger Trigger          `yaml:"trigger" json:"trigger"`
	Actions []WorkflowAction `yaml:"actions" json:"actions"`
}

// Trigger is the eligibility predicate gating a workflow. Amount bounds are
// inclusive; a nil bound is unconstrained.
type Trigger struct {
	MinDaysOverdue int              `yaml:"min_days_overdue" json:"min_days_overdue"`
	AmountMin      *decimal.Decimal `yaml:"amount_min"       json:"amount_min,omitempty"`
	AmountMax      *decimal.Decimal `yaml:"amount_max"       json:"amount_max,omitempty"`
	DebtorType     DebtorType       `yaml:"debtor_type"      json:"debtor_type"`
}

// WorkflowAction is a single recovery step within a workflow. DelayDays is
// offset from the case's overdue start, not from when the workflow first
// fired.
type WorkflowAction struct {
	ID          string     `yaml:"id"         json:"id"`
	Channel     Channel    `yaml:"channel"    json:"channel"`
	DelayDays   int        `yaml:"delay_days" json:"delay_days"`
	TemplateRef string     `yaml:"template"   json:"template"`
	Condition   *Condition `yaml:"condition"  json:"condition,omitempty"`
}
