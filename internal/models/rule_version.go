package models

import (
	"time"

	"gorm.io/datatypes"
)

// RuleVersion is an immutable snapshot of a rule's evaluable fields.
// Versions are contiguous per rule starting at 1 and are never
// mutated or deleted; a rollback appends a new version.
type RuleVersion struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RuleID        uint64 `gorm:"not null;uniqueIndex:uq_rule_version,priority:1"` // Owning rule.
	VersionNumber int    `gorm:"not null;uniqueIndex:uq_rule_version,priority:2"` // Monotonic per-rule counter.

	Name           string         `gorm:"size:160;not null"`     // Rule name at snapshot time.
	Priority       int            `gorm:"not null"`              // Priority at snapshot time.
	TriggerType    string         `gorm:"size:32;not null"`      // Trigger type at snapshot time.
	TriggerConfig  datatypes.JSON `gorm:"not null;default:'{}'"` // Trigger config at snapshot time.
	Conditions     datatypes.JSON `gorm:"not null;default:'[]'"` // Conditions at snapshot time.
	Actions        datatypes.JSON `gorm:"not null;default:'[]'"` // Actions at snapshot time.
	Enabled        bool           `gorm:"not null"`              // Enabled flag at snapshot time.
	LifecycleState string         `gorm:"size:32;not null"`      // Lifecycle state at snapshot time.

	ChangeNote string `gorm:"type:text"`              // Optional free-text note.
	IsRollback bool   `gorm:"not null;default:false"` // True when created by a rollback.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (RuleVersion) TableName() string {
	return "rule_versions"
}
