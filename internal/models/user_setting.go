package models

import "time"

// Autopilot execution modes.
const (
	// ModeSuggestOnly computes outcomes without touching any state.
	ModeSuggestOnly = "suggest_only"
	// ModeAutoCreateTasks additionally persists suggested tasks.
	ModeAutoCreateTasks = "auto_create_tasks"
	// ModeAutoApply additionally mutates pod balances for allocations.
	ModeAutoApply = "auto_apply_internal_allocations"
)

// UserSetting is the single-row settings record for the local user.
// The engine reads these values and never writes them.
type UserSetting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserName     string `gorm:"size:120;not null;default:'Personal User'"` // Display name.
	BaseCurrency string `gorm:"size:8;not null;default:'USD'"`             // Reporting currency.

	AutopilotMode string `gorm:"size:40;not null;default:'suggest_only'"` // Execution mode for non-dry runs.

	GuardrailMinCheckingFloor   float64  `gorm:"not null;default:0"`   // Balance floor allocations must respect.
	GuardrailMaxCategoryDaily   *float64 `gorm:""`                     // Optional per-category daily outflow cap.
	GuardrailRiskPauseThreshold float64  `gorm:"not null;default:0.6"` // Risk score at which runs pause.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (UserSetting) TableName() string {
	return "user_settings"
}
