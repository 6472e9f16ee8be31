package models

import (
	"time"

	"gorm.io/datatypes"
)

// HealthStatus is a per-component heartbeat payload, upserted by
// background drivers such as the scheduler.
type HealthStatus struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Component string         `gorm:"size:80;not null;uniqueIndex"` // Component name.
	Payload   datatypes.JSON `gorm:"not null;default:'{}'"`        // Heartbeat payload.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last heartbeat timestamp.
}

// TableName overrides the default table name.
func (HealthStatus) TableName() string {
	return "health_statuses"
}
