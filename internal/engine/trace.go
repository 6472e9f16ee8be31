package engine

import "encoding/json"

// Trace is the structured, persisted record of everything considered
// and decided during one rule evaluation. It is computed once at
// write time and never recomputed on read.
type Trace struct {
	Trigger        bool             `json:"trigger"`        // Whether the trigger matched.
	Conditions     []ConditionTrace `json:"conditions"`     // One entry per evaluated condition.
	Actions        []ActionTrace    `json:"actions"`        // One entry per attempted action.
	DryRun         bool             `json:"dry_run"`        // Whether this was a simulation.
	ExecutionMode  string           `json:"execution_mode"` // Effective execution mode.
	Guardrails     GuardrailTrace   `json:"guardrails"`     // Guardrail signals and decisions.
	RuleFired      RuleFiredTrace   `json:"rule_fired"`     // Rule identity at evaluation time.
	Explainability Explainability   `json:"explainability"` // Human-facing explanation.
}

// ConditionTrace records one condition verdict.
type ConditionTrace struct {
	Condition Condition `json:"condition"` // The condition as configured.
	OK        bool      `json:"ok"`        // Verdict.
	Message   string    `json:"message"`   // Explanation.
}

// ActionTrace records one attempted action.
type ActionTrace struct {
	Action  Action        `json:"action"`  // The action as configured.
	Status  string        `json:"status"`  // success or failed.
	Message string        `json:"message"` // Explanation.
	Payload ActionPayload `json:"payload"` // Structured outcome.
}

// ActionPayload is the structured outcome of one action.
type ActionPayload struct {
	Allocated *float64 `json:"allocated,omitempty"`  // Amount allocated by this action.
	Leftover  *float64 `json:"leftover,omitempty"`   // Unallocated remainder (allocate_percent).
	PodID     uint64   `json:"pod_id,omitempty"`     // Target pod.
	TaskTitle string   `json:"task_title,omitempty"` // Suggested task title.
	TaskNote  string   `json:"task_note,omitempty"`  // Suggested task note.
}

// GuardrailTrace records the guardrail signals for one run.
type GuardrailTrace struct {
	RiskSpikeScore     float64  `json:"risk_spike_score"`               // Computed risk score.
	RiskPauseThreshold float64  `json:"risk_pause_threshold"`           // Configured pause threshold.
	CategoryDailyTotal *float64 `json:"category_daily_total,omitempty"` // Same-day category spend, when checked.
	CategoryDailyCap   *float64 `json:"category_daily_cap,omitempty"`   // Configured cap, when checked.
	Blocked            string   `json:"blocked,omitempty"`              // Block reason, when vetoed.
}

// RuleFiredTrace pins the rule identity the run was evaluated against,
// so the audit trail survives later rule edits.
type RuleFiredTrace struct {
	RuleID        uint64          `json:"rule_id"`        // Rule primary key.
	RuleName      string          `json:"rule_name"`      // Rule name at evaluation time.
	Priority      int             `json:"priority"`       // Priority at evaluation time.
	BaseCurrency  string          `json:"base_currency"`  // Base currency used for conversions.
	TriggerType   string          `json:"trigger_type"`   // Trigger type at evaluation time.
	TriggerConfig json.RawMessage `json:"trigger_config"` // Trigger config at evaluation time.
}

// Explainability carries the persisted human-facing explanation.
type Explainability struct {
	WhyRecommendation string `json:"why_recommendation"` // Why the outcome happened.
	WhatIfSkip        string `json:"what_if_skip"`       // Impact of ignoring the recommendation.
	ConfidenceBadge   string `json:"confidence_badge"`   // high, medium or low.
}
