package models

import "time"

// Task statuses.
const (
	// TaskOpen marks a task awaiting the user.
	TaskOpen = "open"
	// TaskDone marks a completed task.
	TaskDone = "done"
)

// TaskTypeLiabilityPayment tags tasks created by liability_suggestion actions.
const TaskTypeLiabilityPayment = "liability_payment"

// Task is a human-facing suggested action. The engine only ever
// creates tasks; it never pays anything.
type Task struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Title       string     `gorm:"size:200;not null"`               // Task title.
	TaskType    string     `gorm:"size:40;not null"`                // Task category tag.
	Note        string     `gorm:"type:text"`                       // Optional free-text note.
	DueDate     *time.Time `gorm:"type:date"`                       // Optional due date.
	ReferenceID string     `gorm:"size:120"`                        // Optional external reference.
	Status      string     `gorm:"size:24;not null;default:'open'"` // open or done.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (Task) TableName() string {
	return "tasks"
}
