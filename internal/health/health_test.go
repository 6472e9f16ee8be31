package health

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupHealthDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:health_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.HealthStatus{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func TestUpsertReplacesComponentPayload(t *testing.T) {
	conn := setupHealthDB(t)
	ctx := context.Background()

	if errUpsert := Upsert(ctx, conn, ComponentScheduler, map[string]any{"status": "ok", "run_count": 3}); errUpsert != nil {
		t.Fatalf("first upsert: %v", errUpsert)
	}
	if errUpsert := Upsert(ctx, conn, ComponentScheduler, map[string]any{"status": "error", "error": "tick failed"}); errUpsert != nil {
		t.Fatalf("second upsert: %v", errUpsert)
	}

	var count int64
	if errCount := conn.Model(&models.HealthStatus{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count rows: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected one row per component, got %d", count)
	}

	row, errGet := Get(ctx, conn, ComponentScheduler)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if row == nil {
		t.Fatal("expected a scheduler row")
	}
	var payload map[string]any
	if errDecode := json.Unmarshal(row.Payload, &payload); errDecode != nil {
		t.Fatalf("decode payload: %v", errDecode)
	}
	if payload["status"] != "error" || payload["error"] != "tick failed" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, has := payload["run_count"]; has {
		t.Fatal("stale payload fields must not survive an upsert")
	}
}

func TestGetUnknownComponentIsNil(t *testing.T) {
	conn := setupHealthDB(t)

	row, errGet := Get(context.Background(), conn, ComponentImports)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if row != nil {
		t.Fatalf("expected nil, got %+v", row)
	}
}

func TestAllOrdersByComponent(t *testing.T) {
	conn := setupHealthDB(t)
	ctx := context.Background()

	for _, component := range []string{ComponentScheduler, ComponentBackup, ComponentImports} {
		if errUpsert := Upsert(ctx, conn, component, map[string]any{"status": "ok"}); errUpsert != nil {
			t.Fatalf("upsert %s: %v", component, errUpsert)
		}
	}

	rows, errAll := All(ctx, conn)
	if errAll != nil {
		t.Fatalf("all: %v", errAll)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Component != ComponentBackup || rows[1].Component != ComponentImports || rows[2].Component != ComponentScheduler {
		t.Fatalf("unexpected order %+v", rows)
	}
}
