// Package health records per-component heartbeat documents so the API
// can report scheduler and import liveness without querying each
// subsystem.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Component names used across the app.
const (
	ComponentScheduler = "scheduler"
	ComponentImports   = "imports"
	ComponentBackup    = "backup"
)

// Upsert replaces the payload for one component.
func Upsert(ctx context.Context, db *gorm.DB, component string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, errEncode := json.Marshal(payload)
	if errEncode != nil {
		return fmt.Errorf("health: encode payload: %w", errEncode)
	}

	var row models.HealthStatus
	errFind := db.WithContext(ctx).Where("component = ?", component).First(&row).Error
	if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("health: find %s: %w", component, errFind)
	}
	row.Component = component
	row.Payload = datatypes.JSON(encoded)
	row.UpdatedAt = time.Now().UTC()
	if errSave := db.WithContext(ctx).Save(&row).Error; errSave != nil {
		return fmt.Errorf("health: save %s: %w", component, errSave)
	}
	return nil
}

// Get returns one component's latest heartbeat, nil when never written.
func Get(ctx context.Context, db *gorm.DB, component string) (*models.HealthStatus, error) {
	var row models.HealthStatus
	errFind := db.WithContext(ctx).Where("component = ?", component).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("health: get %s: %w", component, errFind)
	}
	return &row, nil
}

// All lists every recorded component heartbeat.
func All(ctx context.Context, db *gorm.DB) ([]models.HealthStatus, error) {
	var rows []models.HealthStatus
	if errFind := db.WithContext(ctx).Order("component ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("health: list: %w", errFind)
	}
	return rows, nil
}
