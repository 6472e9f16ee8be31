package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/balance"
	"github.com/flowledger/flowledger/internal/db"
	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/fx"
	"github.com/flowledger/flowledger/internal/health"
	"github.com/flowledger/flowledger/internal/models"
	"github.com/flowledger/flowledger/internal/settings"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupSchedulerDB(t *testing.T) (*gorm.DB, *engine.Runner) {
	t.Helper()
	dsn := fmt.Sprintf("file:scheduler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	runner := engine.NewRunner(conn, fx.NewService(conn), balance.NewSource(conn), settings.NewSource(conn))
	return conn, runner
}

func TestNewDefaultsToHourlySpec(t *testing.T) {
	s := New(nil, nil, "")
	if s.spec != DefaultSpec {
		t.Fatalf("unexpected spec %q", s.spec)
	}
	if s = New(nil, nil, "*/5 * * * *"); s.spec != "*/5 * * * *" {
		t.Fatalf("unexpected spec %q", s.spec)
	}
}

func TestStartRejectsMalformedSpec(t *testing.T) {
	conn, runner := setupSchedulerDB(t)
	s := New(conn, runner, "not a cron spec")
	if errStart := s.Start(context.Background()); errStart == nil {
		s.Stop()
		t.Fatal("expected an error for a malformed spec")
	}
}

func TestTickEvaluatesScheduleRulesAndRecordsHeartbeat(t *testing.T) {
	conn, runner := setupSchedulerDB(t)
	ctx := context.Background()

	rule := models.Rule{
		Name:           "Hourly check-in",
		Priority:       100,
		TriggerType:    models.TriggerSchedule,
		TriggerConfig:  datatypes.JSON(`{}`),
		Conditions:     datatypes.JSON(`[]`),
		Actions:        datatypes.JSON(`[]`),
		Enabled:        true,
		LifecycleState: models.LifecycleActive,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	s := New(conn, runner, "")
	s.Tick(ctx)

	var runs []models.Run
	if errFind := conn.Find(&runs).Error; errFind != nil {
		t.Fatalf("load runs: %v", errFind)
	}
	if len(runs) != 1 || runs[0].Status != models.RunCompleted {
		t.Fatalf("unexpected runs %+v", runs)
	}
	wantKey := "schedule:" + time.Now().UTC().Format("2006010215")
	if runs[0].EventKey != wantKey {
		t.Fatalf("unexpected event key %q", runs[0].EventKey)
	}

	// A second tick inside the same hour is absorbed by the run ledger.
	s.Tick(ctx)
	var count int64
	if errCount := conn.Model(&models.Run{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count runs: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected one run after a repeated tick, got %d", count)
	}

	status, errStatus := health.Get(ctx, conn, health.ComponentScheduler)
	if errStatus != nil {
		t.Fatalf("health status: %v", errStatus)
	}
	if status == nil {
		t.Fatal("expected a scheduler heartbeat")
	}
	var payload map[string]any
	if errDecode := json.Unmarshal(status.Payload, &payload); errDecode != nil {
		t.Fatalf("decode payload: %v", errDecode)
	}
	if payload["status"] != "ok" || payload["event_key"] != wantKey {
		t.Fatalf("unexpected payload %v", payload)
	}
}
