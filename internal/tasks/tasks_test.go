package tasks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTasksDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:tasks_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Task{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

func TestCreateDefaultsTypeAndStatus(t *testing.T) {
	conn := setupTasksDB(t)

	task, errCreate := Create(context.Background(), conn, CreateInput{Title: "  Pay rent  "})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if task.Title != "Pay rent" {
		t.Fatalf("title must be trimmed, got %q", task.Title)
	}
	if task.TaskType != models.TaskTypeLiabilityPayment || task.Status != models.TaskOpen {
		t.Fatalf("unexpected defaults %+v", task)
	}

	if _, errEmpty := Create(context.Background(), conn, CreateInput{Title: "   "}); errEmpty == nil {
		t.Fatal("expected an error for an empty title")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	conn := setupTasksDB(t)
	ctx := context.Background()

	first, errCreate := Create(ctx, conn, CreateInput{Title: "one"})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if _, errCreate = Create(ctx, conn, CreateInput{Title: "two"}); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if _, errDone := MarkDone(ctx, conn, first.ID); errDone != nil {
		t.Fatalf("mark done: %v", errDone)
	}

	open, errOpen := List(ctx, conn, models.TaskOpen)
	if errOpen != nil {
		t.Fatalf("list open: %v", errOpen)
	}
	if len(open) != 1 || open[0].Title != "two" {
		t.Fatalf("unexpected open tasks %+v", open)
	}

	all, errAll := List(ctx, conn, "")
	if errAll != nil {
		t.Fatalf("list all: %v", errAll)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}

	count, errCount := OpenCount(ctx, conn)
	if errCount != nil {
		t.Fatalf("open count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected 1 open task, got %d", count)
	}
}

func TestMarkDoneIsIdempotent(t *testing.T) {
	conn := setupTasksDB(t)
	ctx := context.Background()

	task, errCreate := Create(ctx, conn, CreateInput{Title: "one"})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	done, errDone := MarkDone(ctx, conn, task.ID)
	if errDone != nil {
		t.Fatalf("mark done: %v", errDone)
	}
	if done.Status != models.TaskDone {
		t.Fatalf("expected done, got %s", done.Status)
	}

	again, errAgain := MarkDone(ctx, conn, task.ID)
	if errAgain != nil {
		t.Fatalf("repeat mark done: %v", errAgain)
	}
	if again.Status != models.TaskDone {
		t.Fatalf("expected done, got %s", again.Status)
	}

	if _, errMissing := MarkDone(ctx, conn, 999); errMissing != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", errMissing)
	}
}
