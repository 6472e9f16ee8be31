package models

import (
	"time"

	"gorm.io/datatypes"
)

// Trigger type values accepted on rules.
const (
	// TriggerManual fires only on explicit user action.
	TriggerManual = "manual"
	// TriggerTransaction fires on newly ingested transactions.
	TriggerTransaction = "transaction"
	// TriggerSchedule fires on scheduler ticks.
	TriggerSchedule = "schedule"
)

// Rule lifecycle states.
const (
	// LifecycleDraft marks a rule that is still being authored.
	LifecycleDraft = "draft"
	// LifecycleActive marks a rule eligible for batch evaluation.
	LifecycleActive = "active"
)

// Rule is a user-authored automation policy. Conditions and actions
// are ordered JSON lists; their order is evaluation order. Priority
// and Enabled carry no column defaults: gorm omits zero-valued fields
// that have one on insert, which would persist a disabled rule as
// enabled.
type Rule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"size:160;not null;uniqueIndex"` // Unique display name.
	Priority int    `gorm:"not null"`                      // Higher evaluates first.

	TriggerType    string         `gorm:"size:32;not null"`                 // manual, transaction or schedule.
	TriggerConfig  datatypes.JSON `gorm:"not null;default:'{}'"`            // Trigger filter payload.
	Conditions     datatypes.JSON `gorm:"not null;default:'[]'"`            // Ordered condition specs.
	Actions        datatypes.JSON `gorm:"not null;default:'[]'"`            // Ordered action specs.
	Enabled        bool           `gorm:"not null"`                         // Whether the rule participates in batches.
	LifecycleState string         `gorm:"size:32;not null;default:'draft'"` // draft or active.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (Rule) TableName() string {
	return "rules"
}
