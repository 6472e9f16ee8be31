package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/flowledger/flowledger/internal/tasks"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TaskHandler manages the manual task queue endpoints.
type TaskHandler struct {
	db *gorm.DB // Database handle for tasks.
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(db *gorm.DB) *TaskHandler {
	return &TaskHandler{db: db}
}

// createTaskRequest captures the payload for creating a task.
type createTaskRequest struct {
	Title       string `json:"title"`        // Required task title.
	TaskType    string `json:"task_type"`    // Optional task type.
	Note        string `json:"note"`         // Optional free text.
	DueDate     string `json:"due_date"`     // Optional, YYYY-MM-DD.
	ReferenceID string `json:"reference_id"` // Optional source marker.
}

// Create validates input and inserts an open task.
func (h *TaskHandler) Create(c *gin.Context) {
	var body createTaskRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	input := tasks.CreateInput{
		Title:       body.Title,
		TaskType:    body.TaskType,
		Note:        body.Note,
		ReferenceID: body.ReferenceID,
	}
	if due := strings.TrimSpace(body.DueDate); due != "" {
		parsed, errParse := time.Parse("2006-01-02", due)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}
		input.DueDate = &parsed
	}

	task, errCreate := tasks.Create(c.Request.Context(), h.db, input)
	if errCreate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errCreate.Error()})
		return
	}
	c.JSON(http.StatusCreated, formatTask(task))
}

// List returns tasks newest first, filtered by the status query.
func (h *TaskHandler) List(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	if status != "" && status != models.TaskOpen && status != models.TaskDone {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be open or done"})
		return
	}
	rows, errList := tasks.List(c.Request.Context(), h.db, status)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tasks failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTask(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// MarkDone closes a task by ID.
func (h *TaskHandler) MarkDone(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	task, errDone := tasks.MarkDone(c.Request.Context(), h.db, id)
	if errDone != nil {
		if errors.Is(errDone, tasks.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, formatTask(task))
}

// formatTask converts a task into a response payload.
func formatTask(task *models.Task) gin.H {
	return gin.H{
		"id":           task.ID,
		"title":        task.Title,
		"task_type":    task.TaskType,
		"note":         task.Note,
		"due_date":     task.DueDate,
		"reference_id": task.ReferenceID,
		"status":       task.Status,
		"created_at":   task.CreatedAt,
		"updated_at":   task.UpdatedAt,
	}
}
