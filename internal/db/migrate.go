package db

import (
	"fmt"

	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.UserSetting{},
		&models.Pod{},
		&models.Transaction{},
		&models.BalanceSnapshot{},
		&models.FxRate{},
		&models.FxRateSnapshot{},
		&models.Rule{},
		&models.RuleVersion{},
		&models.Run{},
		&models.ActionResult{},
		&models.Task{},
		&models.HealthStatus{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
