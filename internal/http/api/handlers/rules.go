package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/models"
	"github.com/flowledger/flowledger/internal/rules"
	"github.com/flowledger/flowledger/internal/simulator"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RuleHandler manages rule authoring and direct evaluation endpoints.
type RuleHandler struct {
	db     *gorm.DB       // Database handle for rules.
	runner *engine.Runner // Evaluation engine.
}

// NewRuleHandler constructs a rule handler.
func NewRuleHandler(db *gorm.DB, runner *engine.Runner) *RuleHandler {
	return &RuleHandler{db: db, runner: runner}
}

// saveRuleRequest captures the payload for creating or updating a rule.
type saveRuleRequest struct {
	Name           string          `json:"name"`            // Unique rule name.
	Priority       int             `json:"priority"`        // Higher evaluates first.
	TriggerType    string          `json:"trigger_type"`    // manual, transaction or schedule.
	TriggerConfig  json.RawMessage `json:"trigger_config"`  // Trigger filter payload.
	Conditions     json.RawMessage `json:"conditions"`      // Ordered condition specs.
	Actions        json.RawMessage `json:"actions"`         // Ordered action specs.
	Enabled        *bool           `json:"enabled"`         // Optional enabled flag.
	LifecycleState string          `json:"lifecycle_state"` // Optional lifecycle state.
	ChangeNote     string          `json:"change_note"`     // Version note.
}

func (r saveRuleRequest) toInput() rules.SaveInput {
	return rules.SaveInput{
		Name:           r.Name,
		Priority:       r.Priority,
		TriggerType:    r.TriggerType,
		TriggerConfig:  r.TriggerConfig,
		Conditions:     r.Conditions,
		Actions:        r.Actions,
		Enabled:        r.Enabled,
		LifecycleState: r.LifecycleState,
		ChangeNote:     r.ChangeNote,
	}
}

// Create validates input and inserts a rule with its first version.
func (h *RuleHandler) Create(c *gin.Context) {
	var body saveRuleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rule, errCreate := rules.Create(c.Request.Context(), h.db, body.toInput())
	if errCreate != nil {
		if errors.Is(errCreate, rules.ErrNameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "rule name already in use"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errCreate.Error()})
		return
	}
	c.JSON(http.StatusCreated, formatRule(rule))
}

// List returns rules in batch evaluation order.
func (h *RuleHandler) List(c *gin.Context) {
	rows, errList := rules.List(c.Request.Context(), h.db)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rules failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatRule(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

// Get fetches a rule by ID.
func (h *RuleHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	rule, errGet := rules.Get(c.Request.Context(), h.db, id)
	if errGet != nil {
		if errors.Is(errGet, rules.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatRule(rule))
}

// Update validates and applies rule changes, snapshotting a version.
func (h *RuleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body saveRuleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rule, errUpdate := rules.Update(c.Request.Context(), h.db, id, body.toInput())
	if errUpdate != nil {
		switch {
		case errors.Is(errUpdate, rules.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errUpdate, rules.ErrNameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "rule name already in use"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": errUpdate.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, formatRule(rule))
}

// Delete removes a rule by ID. Runs and versions are retained.
func (h *RuleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := rules.Delete(c.Request.Context(), h.db, id); errDelete != nil {
		if errors.Is(errDelete, rules.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// promoteRequest captures the optional note for a promotion.
type promoteRequest struct {
	ChangeNote string `json:"change_note"` // Optional version note.
}

// Promote enables a rule and moves it to the active lifecycle state.
func (h *RuleHandler) Promote(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body promoteRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	rule, errPromote := rules.Promote(c.Request.Context(), h.db, id, body.ChangeNote)
	if errPromote != nil {
		if errors.Is(errPromote, rules.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "promote failed"})
		return
	}
	c.JSON(http.StatusOK, formatRule(rule))
}

// runRuleRequest captures the payload for a direct evaluation.
type runRuleRequest struct {
	TransactionID uint64 `json:"transaction_id"` // Optional transaction to evaluate against.
	DryRun        bool   `json:"dry_run"`        // Preview without side effects.
}

// Run evaluates one rule against a fresh manual event, or against a
// specific transaction when one is given.
func (h *RuleHandler) Run(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body runRuleRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	rule, errGet := rules.Get(c.Request.Context(), h.db, id)
	if errGet != nil {
		if errors.Is(errGet, rules.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var (
		event engine.Event
		tx    *models.Transaction
	)
	if body.TransactionID != 0 {
		var row models.Transaction
		if errFind := h.db.WithContext(c.Request.Context()).First(&row, body.TransactionID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		tx = &row
		event = engine.NewTransactionEvent(row.ID)
	} else {
		event = engine.NewManualEvent()
	}

	run, results, errRun := h.runner.RunRule(c.Request.Context(), *rule, event, tx, body.DryRun)
	if errRun != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run":            formatRun(run),
		"action_results": formatActionResults(results),
	})
}

// simulateRequest captures the replay window for a simulation.
type simulateRequest struct {
	Days int `json:"days"` // Replay window in days, 30 when omitted.
}

// Simulate dry-runs a rule over recent transaction history.
func (h *RuleHandler) Simulate(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body simulateRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	report, errSim := simulator.Simulate(c.Request.Context(), h.db, h.runner, id, body.Days)
	if errSim != nil {
		if errors.Is(errSim, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "simulation failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Templates lists the built-in rule templates.
func (h *RuleHandler) Templates(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, tpl := range rules.Templates() {
		out = append(out, gin.H{
			"key":          tpl.Key,
			"name":         tpl.Name,
			"description":  tpl.Description,
			"trigger_type": tpl.TriggerType,
		})
	}
	c.JSON(http.StatusOK, gin.H{"templates": out})
}

// createFromTemplateRequest captures template instantiation input.
type createFromTemplateRequest struct {
	Key   string `json:"key"`    // Template key.
	PodID uint64 `json:"pod_id"` // Optional allocation target pod.
}

// CreateFromTemplate instantiates a built-in template as a draft rule.
func (h *RuleHandler) CreateFromTemplate(c *gin.Context) {
	var body createFromTemplateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	tpl, errTpl := rules.TemplateByKey(strings.TrimSpace(body.Key))
	if errTpl != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown template"})
		return
	}
	input, errBuild := rules.BuildTemplatePayload(*tpl, body.PodID)
	if errBuild != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "template build failed"})
		return
	}
	input.ChangeNote = "Created from template " + tpl.Key

	rule, errCreate := rules.Create(c.Request.Context(), h.db, input)
	if errCreate != nil {
		if errors.Is(errCreate, rules.ErrNameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "rule name already in use"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errCreate.Error()})
		return
	}
	c.JSON(http.StatusCreated, formatRule(rule))
}

// parseIDParam parses the :id path parameter, writing the error
// response itself on failure.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// formatRule converts a rule into a response payload.
func formatRule(rule *models.Rule) gin.H {
	return gin.H{
		"id":              rule.ID,
		"name":            rule.Name,
		"priority":        rule.Priority,
		"trigger_type":    rule.TriggerType,
		"trigger_config":  json.RawMessage(rule.TriggerConfig),
		"conditions":      json.RawMessage(rule.Conditions),
		"actions":         json.RawMessage(rule.Actions),
		"enabled":         rule.Enabled,
		"lifecycle_state": rule.LifecycleState,
		"created_at":      rule.CreatedAt,
		"updated_at":      rule.UpdatedAt,
	}
}
