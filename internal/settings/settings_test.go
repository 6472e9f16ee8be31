package settings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupSettingsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.UserSetting{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func strPtr(s string) *string { return &s }
func fPtr(v float64) *float64 { return &v }

func TestGetOrCreateSeedsDefaults(t *testing.T) {
	conn := setupSettingsDB(t)

	row, errLoad := GetOrCreate(context.Background(), conn)
	if errLoad != nil {
		t.Fatalf("get: %v", errLoad)
	}
	if row.UserName != DefaultUserName || row.BaseCurrency != DefaultBaseCurrency {
		t.Fatalf("unexpected defaults %+v", row)
	}
	if row.AutopilotMode != models.ModeSuggestOnly {
		t.Fatalf("expected suggest_only default, got %s", row.AutopilotMode)
	}
	if row.GuardrailRiskPauseThreshold != DefaultRiskPauseThreshold {
		t.Fatalf("expected threshold %v, got %v", DefaultRiskPauseThreshold, row.GuardrailRiskPauseThreshold)
	}

	var count int64
	if errCount := conn.Model(&models.UserSetting{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected a single settings row, got %d", count)
	}

	// A repeated load reuses the row.
	if _, errAgain := GetOrCreate(context.Background(), conn); errAgain != nil {
		t.Fatalf("reload: %v", errAgain)
	}
	if errCount := conn.Model(&models.UserSetting{}).Count(&count).Error; errCount != nil {
		t.Fatalf("recount: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("reload must not create another row, got %d", count)
	}
}

func TestSaveRejectsUnknownMode(t *testing.T) {
	conn := setupSettingsDB(t)

	if _, errSave := Save(context.Background(), conn, SaveInput{AutopilotMode: strPtr("yolo")}); errSave == nil {
		t.Fatal("expected an error for an unknown autopilot mode")
	}
}

func TestSaveAppliesAndClearsFields(t *testing.T) {
	conn := setupSettingsDB(t)
	ctx := context.Background()

	row, errSave := Save(ctx, conn, SaveInput{
		BaseCurrency:              strPtr("eur"),
		AutopilotMode:             strPtr(models.ModeAutoApply),
		GuardrailMinCheckingFloor: fPtr(250),
		GuardrailMaxCategoryDaily: fPtr(100),
	})
	if errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if row.BaseCurrency != "EUR" {
		t.Fatalf("currency must be upper-cased, got %s", row.BaseCurrency)
	}
	if row.GuardrailMaxCategoryDaily == nil || *row.GuardrailMaxCategoryDaily != 100 {
		t.Fatalf("expected cap 100, got %v", row.GuardrailMaxCategoryDaily)
	}

	// A negative cap clears it.
	row, errSave = Save(ctx, conn, SaveInput{GuardrailMaxCategoryDaily: fPtr(-1)})
	if errSave != nil {
		t.Fatalf("clear: %v", errSave)
	}
	if row.GuardrailMaxCategoryDaily != nil {
		t.Fatalf("expected cap cleared, got %v", *row.GuardrailMaxCategoryDaily)
	}
	if row.BaseCurrency != "EUR" {
		t.Fatal("untouched fields must survive partial saves")
	}
}

func TestSourceLoadMapsToEngineSettings(t *testing.T) {
	conn := setupSettingsDB(t)
	ctx := context.Background()

	if _, errSave := Save(ctx, conn, SaveInput{
		AutopilotMode:               strPtr(models.ModeAutoCreateTasks),
		GuardrailMinCheckingFloor:   fPtr(500),
		GuardrailRiskPauseThreshold: fPtr(0.4),
	}); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}

	loaded, errLoad := NewSource(conn).Load(ctx)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if loaded.AutopilotMode != models.ModeAutoCreateTasks ||
		loaded.MinCheckingFloor != 500 ||
		loaded.RiskPauseThreshold != 0.4 {
		t.Fatalf("unexpected engine settings %+v", loaded)
	}
}
