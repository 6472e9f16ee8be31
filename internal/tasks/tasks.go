// Package tasks manages the manual work queue that rules and imports
// feed into.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("tasks: not found")

// CreateInput carries a new manual task.
type CreateInput struct {
	Title       string     `json:"title"`        // Required.
	TaskType    string     `json:"task_type"`    // Defaults to liability_payment.
	Note        string     `json:"note"`         // Optional free text.
	DueDate     *time.Time `json:"due_date"`     // Optional due date.
	ReferenceID string     `json:"reference_id"` // Optional source marker.
}

// Create inserts an open task.
func Create(ctx context.Context, db *gorm.DB, input CreateInput) (*models.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("tasks: title is required")
	}
	taskType := input.TaskType
	if taskType == "" {
		taskType = models.TaskTypeLiabilityPayment
	}

	task := models.Task{
		Title:       input.Title,
		TaskType:    taskType,
		Note:        input.Note,
		DueDate:     input.DueDate,
		ReferenceID: input.ReferenceID,
		Status:      models.TaskOpen,
	}
	if errCreate := db.WithContext(ctx).Create(&task).Error; errCreate != nil {
		return nil, fmt.Errorf("tasks: create: %w", errCreate)
	}
	return &task, nil
}

// List returns tasks, newest first, optionally filtered by status.
func List(ctx context.Context, db *gorm.DB, status string) ([]models.Task, error) {
	query := db.WithContext(ctx).Model(&models.Task{}).Order("created_at DESC, id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var rows []models.Task
	if errFind := query.Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("tasks: list: %w", errFind)
	}
	return rows, nil
}

// MarkDone closes a task.
func MarkDone(ctx context.Context, db *gorm.DB, id uint64) (*models.Task, error) {
	var task models.Task
	errFind := db.WithContext(ctx).First(&task, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tasks: get: %w", errFind)
	}
	if task.Status == models.TaskDone {
		return &task, nil
	}
	task.Status = models.TaskDone
	if errSave := db.WithContext(ctx).Save(&task).Error; errSave != nil {
		return nil, fmt.Errorf("tasks: mark done: %w", errSave)
	}
	return &task, nil
}

// OpenCount returns the number of open tasks.
func OpenCount(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	errCount := db.WithContext(ctx).Model(&models.Task{}).
		Where("status = ?", models.TaskOpen).
		Count(&count).Error
	if errCount != nil {
		return 0, fmt.Errorf("tasks: open count: %w", errCount)
	}
	return count, nil
}
