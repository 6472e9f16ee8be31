package models

import "time"

// BalanceSnapshot records a known balance at a point in time. The
// most recent snapshot feeds balance conditions and floor projections.
type BalanceSnapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SourceType string  `gorm:"size:20;not null"` // Origin kind, e.g. account.
	SourceID   uint64  `gorm:"not null"`         // Origin row ID.
	Balance    float64 `gorm:"not null"`         // Balance value.

	SnapshotAt time.Time `gorm:"not null;index;autoCreateTime"` // Observation timestamp.
}

// TableName overrides the default table name.
func (BalanceSnapshot) TableName() string {
	return "balance_snapshots"
}
