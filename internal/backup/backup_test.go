package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/health"
	"github.com/flowledger/flowledger/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupBackupManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dsn := fmt.Sprintf("file:backup_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.HealthStatus{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	dbPath := filepath.Join(t.TempDir(), "flowledger.sqlite3")
	if errWrite := os.WriteFile(dbPath, []byte("original database bytes"), 0o600); errWrite != nil {
		t.Fatalf("seed db file: %v", errWrite)
	}
	manager, errNew := NewManager(conn, dbPath)
	if errNew != nil {
		t.Fatalf("new manager: %v", errNew)
	}
	return manager, dbPath
}

func TestNewManagerRejectsEmptyPath(t *testing.T) {
	if _, errNew := NewManager(nil, ""); !errors.Is(errNew, ErrNotSQLite) {
		t.Fatalf("expected ErrNotSQLite, got %v", errNew)
	}
}

func TestSnapshotCopiesDatabaseFile(t *testing.T) {
	manager, dbPath := setupBackupManager(t)

	path, errSnap := manager.Snapshot(context.Background(), "Before Import")
	if errSnap != nil {
		t.Fatalf("snapshot: %v", errSnap)
	}
	if filepath.Dir(path) != filepath.Join(filepath.Dir(dbPath), "snapshots") {
		t.Fatalf("unexpected snapshot location %s", path)
	}
	if !strings.HasSuffix(path, "-before-import.sqlite3") {
		t.Fatalf("unexpected snapshot name %s", path)
	}
	copied, errRead := os.ReadFile(path)
	if errRead != nil {
		t.Fatalf("read snapshot: %v", errRead)
	}
	if string(copied) != "original database bytes" {
		t.Fatalf("snapshot content differs: %q", copied)
	}
}

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	manager, dbPath := setupBackupManager(t)
	ctx := context.Background()

	archive, errCreate := manager.Create(ctx, "correct horse", "nightly")
	if errCreate != nil {
		t.Fatalf("create backup: %v", errCreate)
	}
	if !strings.HasSuffix(archive, "-nightly.enc") {
		t.Fatalf("unexpected archive name %s", archive)
	}
	sealed, errRead := os.ReadFile(archive)
	if errRead != nil {
		t.Fatalf("read archive: %v", errRead)
	}
	if strings.Contains(string(sealed), "original database bytes") {
		t.Fatal("archive must not contain plaintext")
	}

	// Clobber the live file, then restore it from the archive.
	if errWrite := os.WriteFile(dbPath, []byte("corrupted"), 0o600); errWrite != nil {
		t.Fatalf("clobber db file: %v", errWrite)
	}
	if errRestore := manager.Restore(ctx, archive, "correct horse"); errRestore != nil {
		t.Fatalf("restore: %v", errRestore)
	}
	restored, errRead := os.ReadFile(dbPath)
	if errRead != nil {
		t.Fatalf("read db file: %v", errRead)
	}
	if string(restored) != "original database bytes" {
		t.Fatalf("restore content differs: %q", restored)
	}

	// Restore drops a pre-restore snapshot of the clobbered file.
	entries, errGlob := filepath.Glob(filepath.Join(filepath.Dir(dbPath), "snapshots", "*-pre-restore.sqlite3"))
	if errGlob != nil {
		t.Fatalf("glob snapshots: %v", errGlob)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one pre-restore snapshot, got %v", entries)
	}

	status, errStatus := health.Get(ctx, manager.db, health.ComponentBackup)
	if errStatus != nil {
		t.Fatalf("health status: %v", errStatus)
	}
	if status == nil {
		t.Fatal("expected a backup heartbeat")
	}
}

func TestRestoreRejectsWrongPassphrase(t *testing.T) {
	manager, _ := setupBackupManager(t)
	ctx := context.Background()

	archive, errCreate := manager.Create(ctx, "correct horse", "nightly")
	if errCreate != nil {
		t.Fatalf("create backup: %v", errCreate)
	}
	if errRestore := manager.Restore(ctx, archive, "battery staple"); !errors.Is(errRestore, ErrBadPassphrase) {
		t.Fatalf("expected ErrBadPassphrase, got %v", errRestore)
	}
	if _, errEmpty := manager.Create(ctx, "", "nightly"); errEmpty == nil {
		t.Fatal("expected an error for an empty passphrase")
	}
}
