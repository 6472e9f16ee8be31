package models

import "time"

// FxRate is the current conversion rate for a currency pair.
type FxRate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	BaseCurrency  string  `gorm:"size:8;not null;uniqueIndex:uq_fx_pair,priority:1"` // Pair base.
	QuoteCurrency string  `gorm:"size:8;not null;uniqueIndex:uq_fx_pair,priority:2"` // Pair quote.
	Rate          float64 `gorm:"not null"`                                          // base -> quote multiplier.
	Source        string  `gorm:"size:40;not null;default:'manual'"`                 // Where the rate came from.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (FxRate) TableName() string {
	return "fx_rates"
}

// FxRateSnapshot is a dated conversion rate used for historical
// conversions at a specific transaction date.
type FxRateSnapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	BaseCurrency  string    `gorm:"size:8;not null;uniqueIndex:uq_fx_snap,priority:1"`    // Pair base.
	QuoteCurrency string    `gorm:"size:8;not null;uniqueIndex:uq_fx_snap,priority:2"`    // Pair quote.
	SnapshotDate  time.Time `gorm:"type:date;not null;uniqueIndex:uq_fx_snap,priority:3"` // Effective date.
	Rate          float64   `gorm:"not null"`                                             // base -> quote multiplier.
	Source        string    `gorm:"size:40;not null;default:'manual'"`                    // Where the rate came from.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// TableName overrides the default table name.
func (FxRateSnapshot) TableName() string {
	return "fx_rate_snapshots"
}
