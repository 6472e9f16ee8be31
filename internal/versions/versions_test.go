package versions

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupVersionsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:versions_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Rule{}, &models.RuleVersion{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func createVersionedRule(t *testing.T, conn *gorm.DB) *models.Rule {
	t.Helper()
	rule := models.Rule{
		Name:           "Payroll split",
		Priority:       100,
		TriggerType:    models.TriggerTransaction,
		TriggerConfig:  datatypes.JSON(`{"description_contains":"payroll"}`),
		Conditions:     datatypes.JSON(`[{"type":"amount_gte","value":100}]`),
		Actions:        datatypes.JSON(`[{"type":"allocate_percent","percent":50}]`),
		Enabled:        true,
		LifecycleState: models.LifecycleDraft,
	}
	if errCreate := conn.Create(&rule).Error; errCreate != nil {
		t.Fatalf("create rule: %v", errCreate)
	}
	return &rule
}

func TestSnapshotNumbersAreMonotonic(t *testing.T) {
	conn := setupVersionsDB(t)
	rule := createVersionedRule(t, conn)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		version, errSnap := Snapshot(ctx, conn, rule, fmt.Sprintf("change %d", want), false)
		if errSnap != nil {
			t.Fatalf("snapshot %d: %v", want, errSnap)
		}
		if version.VersionNumber != want {
			t.Fatalf("expected version %d, got %d", want, version.VersionNumber)
		}
	}

	rows, errList := List(ctx, conn, rule.ID)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 3 || rows[0].VersionNumber != 3 || rows[2].VersionNumber != 1 {
		t.Fatalf("expected versions 3..1, got %+v", rows)
	}
}

func TestRollbackAppendsNewVersion(t *testing.T) {
	conn := setupVersionsDB(t)
	rule := createVersionedRule(t, conn)
	ctx := context.Background()

	if _, errSnap := Snapshot(ctx, conn, rule, "initial", false); errSnap != nil {
		t.Fatalf("snapshot v1: %v", errSnap)
	}

	rule.Priority = 200
	rule.Actions = datatypes.JSON(`[{"type":"allocate_percent","percent":25}]`)
	if errSave := conn.Save(rule).Error; errSave != nil {
		t.Fatalf("save rule: %v", errSave)
	}
	if _, errSnap := Snapshot(ctx, conn, rule, "tuned down", false); errSnap != nil {
		t.Fatalf("snapshot v2: %v", errSnap)
	}

	target, errGet := Get(ctx, conn, rule.ID, 1)
	if errGet != nil {
		t.Fatalf("get v1: %v", errGet)
	}
	if errRollback := Rollback(ctx, conn, rule, target, ""); errRollback != nil {
		t.Fatalf("rollback: %v", errRollback)
	}

	if rule.Priority != 100 {
		t.Fatalf("expected priority restored to 100, got %d", rule.Priority)
	}

	rows, errList := List(ctx, conn, rule.ID)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 3 {
		t.Fatalf("rollback must append, not rewrite: got %d versions", len(rows))
	}
	newest := rows[0]
	if newest.VersionNumber != 3 || !newest.IsRollback {
		t.Fatalf("expected v3 flagged is_rollback, got %+v", newest)
	}
	if newest.ChangeNote != "Rollback to v1" {
		t.Fatalf("unexpected change note %q", newest.ChangeNote)
	}
	if newest.Priority != 100 {
		t.Fatalf("rollback version must carry restored fields, got priority %d", newest.Priority)
	}
}

func TestGetUnknownVersion(t *testing.T) {
	conn := setupVersionsDB(t)
	rule := createVersionedRule(t, conn)

	_, errGet := Get(context.Background(), conn, rule.ID, 9)
	if errGet == nil {
		t.Fatal("expected an error for a missing version")
	}
}

func TestDiffShowsChangedFields(t *testing.T) {
	conn := setupVersionsDB(t)
	rule := createVersionedRule(t, conn)
	ctx := context.Background()

	v1, errSnap := Snapshot(ctx, conn, rule, "initial", false)
	if errSnap != nil {
		t.Fatalf("snapshot v1: %v", errSnap)
	}
	rule.Priority = 200
	if errSave := conn.Save(rule).Error; errSave != nil {
		t.Fatalf("save rule: %v", errSave)
	}
	v2, errSnap := Snapshot(ctx, conn, rule, "louder", false)
	if errSnap != nil {
		t.Fatalf("snapshot v2: %v", errSnap)
	}

	diff, errDiff := Diff(v1, v2)
	if errDiff != nil {
		t.Fatalf("diff: %v", errDiff)
	}
	if !strings.Contains(diff, "--- v1") || !strings.Contains(diff, "+++ v2") {
		t.Fatalf("diff missing headers:\n%s", diff)
	}
	if !strings.Contains(diff, `-  "priority": 100`) || !strings.Contains(diff, `+  "priority": 200`) {
		t.Fatalf("diff missing priority change:\n%s", diff)
	}

	same, errSame := Diff(v1, v1)
	if errSame != nil {
		t.Fatalf("self diff: %v", errSame)
	}
	if same != "" {
		t.Fatalf("identical versions must diff empty, got:\n%s", same)
	}
}
