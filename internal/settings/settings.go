// Package settings owns the single-row user settings record: base
// currency, autopilot execution mode and guardrail thresholds. The
// engine reads these values through its SettingsSource dependency and
// never writes them.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/gorm"
)

// Defaults applied when no settings row exists yet.
const (
	// DefaultUserName is the fallback display name.
	DefaultUserName = "Personal User"
	// DefaultBaseCurrency is the fallback reporting currency.
	DefaultBaseCurrency = "USD"
	// DefaultRiskPauseThreshold is the fallback risk-pause threshold.
	DefaultRiskPauseThreshold = 0.6
)

// GetOrCreate returns the settings row, creating it with defaults on
// first use.
func GetOrCreate(ctx context.Context, db *gorm.DB) (*models.UserSetting, error) {
	var row models.UserSetting
	errFind := db.WithContext(ctx).Order("id ASC").First(&row).Error
	if errFind == nil {
		return &row, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("settings: load: %w", errFind)
	}

	row = models.UserSetting{
		UserName:                    DefaultUserName,
		BaseCurrency:                DefaultBaseCurrency,
		AutopilotMode:               models.ModeSuggestOnly,
		GuardrailRiskPauseThreshold: DefaultRiskPauseThreshold,
	}
	if errCreate := db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		// Another caller may have created the row first.
		var existing models.UserSetting
		if errRetry := db.WithContext(ctx).Order("id ASC").First(&existing).Error; errRetry == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("settings: create: %w", errCreate)
	}
	return &row, nil
}

// SaveInput carries updatable settings fields; nil fields are left
// unchanged.
type SaveInput struct {
	UserName                    *string  // Display name.
	BaseCurrency                *string  // Reporting currency code.
	AutopilotMode               *string  // Execution mode for non-dry runs.
	GuardrailMinCheckingFloor   *float64 // Balance floor.
	GuardrailMaxCategoryDaily   *float64 // Per-category daily cap; negative clears it.
	GuardrailRiskPauseThreshold *float64 // Risk-pause threshold.
}

// Save applies the provided fields to the settings row.
func Save(ctx context.Context, db *gorm.DB, input SaveInput) (*models.UserSetting, error) {
	row, errLoad := GetOrCreate(ctx, db)
	if errLoad != nil {
		return nil, errLoad
	}

	if input.UserName != nil {
		name := strings.TrimSpace(*input.UserName)
		if name == "" {
			name = DefaultUserName
		}
		row.UserName = name
	}
	if input.BaseCurrency != nil {
		ccy := strings.ToUpper(strings.TrimSpace(*input.BaseCurrency))
		if ccy == "" {
			ccy = DefaultBaseCurrency
		}
		row.BaseCurrency = ccy
	}
	if input.AutopilotMode != nil {
		mode := strings.TrimSpace(*input.AutopilotMode)
		switch mode {
		case models.ModeSuggestOnly, models.ModeAutoCreateTasks, models.ModeAutoApply:
		default:
			return nil, fmt.Errorf("settings: unknown autopilot mode: %s", mode)
		}
		row.AutopilotMode = mode
	}
	if input.GuardrailMinCheckingFloor != nil {
		row.GuardrailMinCheckingFloor = *input.GuardrailMinCheckingFloor
	}
	if input.GuardrailMaxCategoryDaily != nil {
		if *input.GuardrailMaxCategoryDaily < 0 {
			row.GuardrailMaxCategoryDaily = nil
		} else {
			cap := *input.GuardrailMaxCategoryDaily
			row.GuardrailMaxCategoryDaily = &cap
		}
	}
	if input.GuardrailRiskPauseThreshold != nil {
		row.GuardrailRiskPauseThreshold = *input.GuardrailRiskPauseThreshold
	}

	if errSave := db.WithContext(ctx).Save(row).Error; errSave != nil {
		return nil, fmt.Errorf("settings: save: %w", errSave)
	}
	return row, nil
}

// Source adapts the settings row into the engine's SettingsSource.
type Source struct {
	db *gorm.DB // Settings store handle.
}

// NewSource constructs a DB-backed settings source.
func NewSource(db *gorm.DB) *Source {
	return &Source{db: db}
}

// Load reads the current settings for the engine.
func (s *Source) Load(ctx context.Context) (engine.Settings, error) {
	row, errLoad := GetOrCreate(ctx, s.db)
	if errLoad != nil {
		return engine.Settings{}, errLoad
	}
	return engine.Settings{
		BaseCurrency:       row.BaseCurrency,
		AutopilotMode:      row.AutopilotMode,
		MinCheckingFloor:   row.GuardrailMinCheckingFloor,
		CategoryDailyCap:   row.GuardrailMaxCategoryDaily,
		RiskPauseThreshold: row.GuardrailRiskPauseThreshold,
	}, nil
}
