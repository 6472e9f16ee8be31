package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RunHandler serves the run ledger and batch evaluation endpoints.
type RunHandler struct {
	db     *gorm.DB       // Database handle for runs.
	runner *engine.Runner // Evaluation engine.
}

// NewRunHandler constructs a run handler.
func NewRunHandler(db *gorm.DB, runner *engine.Runner) *RunHandler {
	return &RunHandler{db: db, runner: runner}
}

// List returns runs newest first, filtered by query parameters.
func (h *RunHandler) List(c *gin.Context) {
	var (
		ruleIDQ = strings.TrimSpace(c.Query("rule_id"))
		statusQ = strings.TrimSpace(c.Query("status"))
		limitQ  = strings.TrimSpace(c.Query("limit"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Run{})
	if ruleIDQ != "" {
		if id, errParse := strconv.ParseUint(ruleIDQ, 10, 64); errParse == nil {
			q = q.Where("rule_id = ?", id)
		}
	}
	if statusQ != "" {
		q = q.Where("status = ?", statusQ)
	}
	limit := 100
	if limitQ != "" {
		if parsed, errParse := strconv.Atoi(limitQ); errParse == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	var rows []models.Run
	if errFind := q.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list runs failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatRun(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// Get fetches one run with its action results.
func (h *RunHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var run models.Run
	if errFind := h.db.WithContext(c.Request.Context()).First(&run, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var results []models.ActionResult
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("run_id = ?", run.ID).
		Order("action_index ASC").
		Find(&results).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":            formatRun(&run),
		"action_results": formatActionResults(results),
	})
}

// evaluateRequest captures the payload for a batch evaluation.
type evaluateRequest struct {
	TransactionID uint64 `json:"transaction_id"` // Optional transaction event source.
	DryRun        bool   `json:"dry_run"`        // Preview without side effects.
}

// Evaluate fires a batch evaluation over all active rules, against a
// transaction event when one is given, otherwise a manual event.
func (h *RunHandler) Evaluate(c *gin.Context) {
	var body evaluateRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	var event engine.Event
	if body.TransactionID != 0 {
		event = engine.NewTransactionEvent(body.TransactionID)
	} else {
		event = engine.NewManualEvent()
	}

	runs, errEval := h.runner.EvaluateForEvent(c.Request.Context(), event, body.DryRun)
	if errEval != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
		return
	}
	out := make([]gin.H, 0, len(runs))
	for i := range runs {
		out = append(out, formatRun(&runs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"event_key": event.Key, "runs": out})
}

// formatRun converts a run into a response payload.
func formatRun(run *models.Run) gin.H {
	return gin.H{
		"id":         run.ID,
		"rule_id":    run.RuleID,
		"event_key":  run.EventKey,
		"status":     run.Status,
		"trace":      json.RawMessage(run.Trace),
		"created_at": run.CreatedAt,
	}
}

// formatActionResults converts action result rows into response payloads.
func formatActionResults(rows []models.ActionResult) []gin.H {
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":           row.ID,
			"run_id":       row.RunID,
			"action_index": row.ActionIndex,
			"status":       row.Status,
			"message":      row.Message,
			"payload":      json.RawMessage(row.Payload),
			"created_at":   row.CreatedAt,
		})
	}
	return out
}
