package models

import "time"

// Pod is a named internal savings bucket. Balances are mutated only
// by the action executor when the execution mode permits.
type Pod struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name           string  `gorm:"size:120;not null;uniqueIndex"` // Unique bucket name.
	TargetBalance  float64 `gorm:"not null;default:0"`            // Desired balance.
	CurrentBalance float64 `gorm:"not null;default:0"`            // Current allocated balance.
	Currency       string  `gorm:"size:8"`                        // Optional ISO currency code.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (Pod) TableName() string {
	return "pods"
}
