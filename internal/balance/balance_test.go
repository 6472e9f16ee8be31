package balance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupBalanceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:balance_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.BalanceSnapshot{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func TestLatestIsNilWithoutSnapshots(t *testing.T) {
	conn := setupBalanceDB(t)

	latest, errLatest := NewSource(conn).Latest(context.Background())
	if errLatest != nil {
		t.Fatalf("latest: %v", errLatest)
	}
	if latest != nil {
		t.Fatalf("expected nil, got %v", *latest)
	}
}

func TestLatestReturnsNewestSnapshot(t *testing.T) {
	conn := setupBalanceDB(t)
	ctx := context.Background()

	if _, errRecord := Record(ctx, conn, "manual", 0, 1200); errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}
	if _, errRecord := Record(ctx, conn, "account", 3, 1450.75); errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}

	latest, errLatest := NewSource(conn).Latest(ctx)
	if errLatest != nil {
		t.Fatalf("latest: %v", errLatest)
	}
	if latest == nil || *latest != 1450.75 {
		t.Fatalf("unexpected latest %v", latest)
	}
}
