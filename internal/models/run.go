package models

import (
	"time"

	"gorm.io/datatypes"
)

// Terminal run statuses. Exactly one is recorded per (rule, event key).
const (
	// RunSkipped means the trigger did not match the event.
	RunSkipped = "skipped"
	// RunGuardrailBlocked means a guardrail vetoed execution.
	RunGuardrailBlocked = "guardrail_blocked"
	// RunConditionFailed means a condition evaluated false.
	RunConditionFailed = "condition_failed"
	// RunActionFailed means an action failed; later actions were not attempted.
	RunActionFailed = "action_failed"
	// RunCompleted means every action succeeded (or none existed).
	RunCompleted = "completed"
)

// Action result statuses.
const (
	// ActionSuccess marks an action that applied or would apply cleanly.
	ActionSuccess = "success"
	// ActionFailed marks an action that could not apply.
	ActionFailed = "failed"
)

// Run is the durable outcome of evaluating one rule against one
// event. The (rule_id, event_key) unique index is the idempotency
// guard: re-evaluation returns the existing row.
type Run struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RuleID   uint64 `gorm:"not null;uniqueIndex:uq_run_rule_event,priority:1"`          // Owning rule.
	EventKey string `gorm:"size:180;not null;uniqueIndex:uq_run_rule_event,priority:2"` // Idempotency key.

	Status string         `gorm:"size:24;not null;index"` // Terminal status.
	Trace  datatypes.JSON `gorm:"not null;default:'{}'"`  // Structured evaluation trace.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (Run) TableName() string {
	return "runs"
}

// ActionResult is one outcome per attempted action within a run.
// Rows exist only for actions that were actually attempted.
type ActionResult struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RunID       uint64 `gorm:"not null;index"` // Owning run.
	ActionIndex int    `gorm:"not null"`       // Position in the rule's action list.

	Status  string         `gorm:"size:24;not null"`      // success or failed.
	Message string         `gorm:"type:text;not null"`    // Human-readable outcome.
	Payload datatypes.JSON `gorm:"not null;default:'{}'"` // Allocated amount, pod id or task fields.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (ActionResult) TableName() string {
	return "action_results"
}
