package simulator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/balance"
	"github.com/flowledger/flowledger/internal/db"
	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/fx"
	"github.com/flowledger/flowledger/internal/models"
	"github.com/flowledger/flowledger/internal/settings"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupSimulatorDB(t *testing.T) (*gorm.DB, *engine.Runner) {
	t.Helper()
	dsn := fmt.Sprintf("file:simulator_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

func seedSimTx(t *testing.T, conn *gorm.DB, daysAgo int, description string, amount float64) {
	t.Helper()
	row := models.Transaction{
		TxHash:      fmt.Sprintf("sim-%s-%d", description, daysAgo),
		Date:        time.Now().UTC().AddDate(0, 0, -daysAgo),
		Description: description,
		Amount:      amount,
		Currency:    "USD",
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed transaction: %v", errCreate)
	}
}

func TestSimulateAggregatesPodImpacts(t *testing.T) {
	conn, runner := setupSimulatorDB(t)
	ctx := context.Background()

	pod := models.Pod{Name: "Savings"}
	if errCreate := conn.Create(&pod).Error; errCreate != nil {
		t.Fatalf("create pod: %v", errCreate)
	}
	rule := models.Rule{
		Name:          "Skim coffee spend",
		Priority:      100,
		TriggerType:   models.TriggerTransaction,
		TriggerConfig: datatypes.JSON(`{"description_contains":"coffee"}`),
		Conditions:    datatypes.JSON(`[]`),
		Actions: datatypes.JSON(fmt.Sprintf(
			`[{"type":"allocate_percent","percent":50,"pod_id":%d},{"type":"liability_suggestion","title":"Review coffee spend"}]`, pod.ID)),
		Enabled:        true,
		LifecycleState: models.LifecycleActive,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}

	seedSimTx(t, conn, 3, "Coffee Shop", -20)
	seedSimTx(t, conn, 2, "Morning Coffee", -10)
	seedSimTx(t, conn, 1, "Grocery Store", -40)

	report, errSim := Simulate(ctx, conn, runner, rule.ID, 30)
	if errSim != nil {
		t.Fatalf("simulate: %v", errSim)
	}
	if report.Transactions != 3 || report.Matched != 2 || report.Completed != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.TasksCreated != 2 {
		t.Fatalf("expected 2 suggested tasks, got %d", report.TasksCreated)
	}
	if len(report.PodImpacts) != 1 {
		t.Fatalf("expected one pod impact, got %+v", report.PodImpacts)
	}
	impact := report.PodImpacts[0]
	if impact.PodID != pod.ID || impact.PodName != "Savings" || impact.Total != 15 {
		t.Fatalf("unexpected pod impact %+v", impact)
	}

	// Simulation is a dry run: no tasks persist and no balances move.
	var taskCount int64
	if errCount := conn.Model(&models.Task{}).Count(&taskCount).Error; errCount != nil {
		t.Fatalf("count tasks: %v", errCount)
	}
	if taskCount != 0 {
		t.Fatalf("expected no persisted tasks, got %d", taskCount)
	}
	var fresh models.Pod
	if errFind := conn.First(&fresh, pod.ID).Error; errFind != nil {
		t.Fatalf("reload pod: %v", errFind)
	}
	if fresh.CurrentBalance != 0 {
		t.Fatalf("expected untouched pod balance, got %v", fresh.CurrentBalance)
	}
}

func TestSimulateWarnsOnFailingActions(t *testing.T) {
	conn, runner := setupSimulatorDB(t)
	ctx := context.Background()

	// No balance snapshots exist, so a clamped fixed allocation always
	// finds zero available funds.
	rule := models.Rule{
		Name:           "Sweep surplus",
		Priority:       100,
		TriggerType:    models.TriggerTransaction,
		TriggerConfig:  datatypes.JSON(`{}`),
		Conditions:     datatypes.JSON(`[]`),
		Actions:        datatypes.JSON(`[{"type":"allocate_fixed","amount":25,"pod_id":1,"up_to_available":true}]`),
		Enabled:        true,
		LifecycleState: models.LifecycleActive,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}
	seedSimTx(t, conn, 1, "Paycheck", 500)

	report, errSim := Simulate(ctx, conn, runner, rule.ID, 30)
	if errSim != nil {
		t.Fatalf("simulate: %v", errSim)
	}
	if report.Matched != 1 || report.Failed != 1 || report.Completed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "an action would fail") {
		t.Fatalf("unexpected warnings %+v", report.Warnings)
	}
}

func TestSimulateDefaultsWindowAndRejectsUnknownRule(t *testing.T) {
	conn, runner := setupSimulatorDB(t)
	ctx := context.Background()

	rule := models.Rule{
		Name:           "Noop",
		Priority:       100,
		TriggerType:    models.TriggerTransaction,
		TriggerConfig:  datatypes.JSON(`{}`),
		Conditions:     datatypes.JSON(`[]`),
		Actions:        datatypes.JSON(`[]`),
		Enabled:        true,
		LifecycleState: models.LifecycleActive,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}
	seedSimTx(t, conn, 5, "Inside window", -10)
	seedSimTx(t, conn, 45, "Outside window", -10)

	report, errSim := Simulate(ctx, conn, runner, rule.ID, 0)
	if errSim != nil {
		t.Fatalf("simulate: %v", errSim)
	}
	if report.Days != 30 || report.Transactions != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, errMissing := Simulate(ctx, conn, runner, 999, 30); errMissing == nil {
		t.Fatal("expected an error for an unknown rule")
	}
}
