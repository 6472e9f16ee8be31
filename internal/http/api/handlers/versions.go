package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/flowledger/flowledger/internal/rules"
	"github.com/flowledger/flowledger/internal/versions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// VersionHandler serves rule version history, diffs and rollbacks.
type VersionHandler struct {
	db *gorm.DB // Database handle for rule versions.
}

// NewVersionHandler constructs a version handler.
func NewVersionHandler(db *gorm.DB) *VersionHandler {
	return &VersionHandler{db: db}
}

// List returns a rule's versions, newest first.
func (h *VersionHandler) List(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	rows, errList := versions.List(c.Request.Context(), h.db, id)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list versions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatVersion(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"versions": out})
}

// Diff returns a unified diff between two versions of one rule.
func (h *VersionHandler) Diff(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	fromQ := strings.TrimSpace(c.Query("from"))
	toQ := strings.TrimSpace(c.Query("to"))
	from, errFrom := strconv.Atoi(fromQ)
	to, errTo := strconv.Atoi(toQ)
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to version numbers are required"})
		return
	}

	before, errBefore := versions.Get(c.Request.Context(), h.db, id, from)
	if errBefore != nil {
		if errors.Is(errBefore, versions.ErrVersionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "version not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	after, errAfter := versions.Get(c.Request.Context(), h.db, id, to)
	if errAfter != nil {
		if errors.Is(errAfter, versions.ErrVersionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "version not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	diff, errDiff := versions.Diff(before, after)
	if errDiff != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "diff failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "diff": diff})
}

// rollbackRequest captures the rollback target and note.
type rollbackRequest struct {
	VersionNumber int    `json:"version_number"` // Version to restore.
	ChangeNote    string `json:"change_note"`    // Optional version note.
}

// Rollback restores a prior version as the live rule definition.
func (h *VersionHandler) Rollback(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body rollbackRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.VersionNumber <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version_number is required"})
		return
	}

	rule, errRollback := rules.RollbackToVersion(c.Request.Context(), h.db, id, body.VersionNumber, body.ChangeNote)
	if errRollback != nil {
		switch {
		case errors.Is(errRollback, rules.ErrNotFound), errors.Is(errRollback, versions.ErrVersionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rollback failed"})
		}
		return
	}
	c.JSON(http.StatusOK, formatRule(rule))
}

// formatVersion converts a rule version into a response payload.
func formatVersion(v *models.RuleVersion) gin.H {
	return gin.H{
		"id":              v.ID,
		"rule_id":         v.RuleID,
		"version_number":  v.VersionNumber,
		"name":            v.Name,
		"priority":        v.Priority,
		"trigger_type":    v.TriggerType,
		"trigger_config":  json.RawMessage(v.TriggerConfig),
		"conditions":      json.RawMessage(v.Conditions),
		"actions":         json.RawMessage(v.Actions),
		"enabled":         v.Enabled,
		"lifecycle_state": v.LifecycleState,
		"change_note":     v.ChangeNote,
		"is_rollback":     v.IsRollback,
		"created_at":      v.CreatedAt,
	}
}
