package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupMigrateDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:migrate_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	return conn
}

func TestMigrateCreatesAllTables(t *testing.T) {
	conn := setupMigrateDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	tables := []string{
		"user_settings",
		"pods",
		"transactions",
		"balance_snapshots",
		"fx_rates",
		"fx_rate_snapshots",
		"rules",
		"rule_versions",
		"runs",
		"action_results",
		"tasks",
		"health_statuses",
	}
	for _, table := range tables {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s to exist", table)
		}
	}

	columns := map[string][]string{
		"rules":         {"name", "priority", "trigger_type", "lifecycle_state"},
		"runs":          {"rule_id", "event_key", "status", "trace"},
		"rule_versions": {"version_number", "change_note", "is_rollback"},
		"transactions":  {"tx_hash", "amount", "currency"},
	}
	for table, cols := range columns {
		for _, col := range cols {
			if !conn.Migrator().HasColumn(table, col) {
				t.Fatalf("expected column %s.%s to exist", table, col)
			}
		}
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	conn := setupMigrateDB(t)
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("first migrate: %v", errMigrate)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("second migrate: %v", errMigrate)
	}
	if errNil := Migrate(nil); errNil == nil {
		t.Fatal("expected an error for a nil connection")
	}
}

func TestCaseInsensitiveLikeExprOnSQLite(t *testing.T) {
	conn := setupMigrateDB(t)

	expr := CaseInsensitiveLikeExpr(conn, "description")
	if expr != "LOWER(description) LIKE ?" {
		t.Fatalf("unexpected expression %q", expr)
	}
	if got := NormalizeLikePattern(conn, "%Coffee%"); got != "%coffee%" {
		t.Fatalf("unexpected pattern %q", got)
	}
}
