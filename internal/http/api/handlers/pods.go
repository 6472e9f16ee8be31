package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PodHandler manages savings pod CRUD endpoints.
type PodHandler struct {
	db *gorm.DB // Database handle for pods.
}

// NewPodHandler constructs a pod handler.
func NewPodHandler(db *gorm.DB) *PodHandler {
	return &PodHandler{db: db}
}

// createPodRequest captures the payload for creating a pod.
type createPodRequest struct {
	Name          string  `json:"name"`           // Unique bucket name.
	TargetBalance float64 `json:"target_balance"` // Desired balance.
	Currency      string  `json:"currency"`       // Optional ISO currency code.
}

// Create validates input and inserts a pod.
func (h *PodHandler) Create(c *gin.Context) {
	var body createPodRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.TargetBalance < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_balance cannot be negative"})
		return
	}

	pod := models.Pod{
		Name:          name,
		TargetBalance: body.TargetBalance,
		Currency:      strings.ToUpper(strings.TrimSpace(body.Currency)),
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&pod).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "create pod failed"})
		return
	}
	c.JSON(http.StatusCreated, formatPod(&pod))
}

// List returns all pods ordered by name.
func (h *PodHandler) List(c *gin.Context) {
	var rows []models.Pod
	if errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list pods failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatPod(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"pods": out})
}

// Get fetches a pod by ID.
func (h *PodHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var pod models.Pod
	if errFind := h.db.WithContext(c.Request.Context()).First(&pod, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatPod(&pod))
}

// updatePodRequest captures optional fields for pod updates.
type updatePodRequest struct {
	Name          *string  `json:"name"`           // Optional new name.
	TargetBalance *float64 `json:"target_balance"` // Optional new target.
	Currency      *string  `json:"currency"`       // Optional currency code.
}

// Update validates and applies pod changes. Current balances are never
// set directly here; only the action executor moves them.
func (h *PodHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body updatePodRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var pod models.Pod
	if errFind := h.db.WithContext(c.Request.Context()).First(&pod, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		pod.Name = name
	}
	if body.TargetBalance != nil {
		if *body.TargetBalance < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_balance cannot be negative"})
			return
		}
		pod.TargetBalance = *body.TargetBalance
	}
	if body.Currency != nil {
		pod.Currency = strings.ToUpper(strings.TrimSpace(*body.Currency))
	}

	if errSave := h.db.WithContext(c.Request.Context()).Save(&pod).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, formatPod(&pod))
}

// Delete removes a pod by ID.
func (h *PodHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.Pod{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// formatPod converts a pod into a response payload.
func formatPod(pod *models.Pod) gin.H {
	return gin.H{
		"id":              pod.ID,
		"name":            pod.Name,
		"target_balance":  pod.TargetBalance,
		"current_balance": pod.CurrentBalance,
		"currency":        pod.Currency,
		"created_at":      pod.CreatedAt,
		"updated_at":      pod.UpdatedAt,
	}
}
