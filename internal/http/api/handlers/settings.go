package handlers

import (
	"net/http"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/flowledger/flowledger/internal/settings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettingsHandler serves the single-user settings document.
type SettingsHandler struct {
	db *gorm.DB // Database handle for settings.
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the settings row, creating defaults on first access.
func (h *SettingsHandler) Get(c *gin.Context) {
	row, errLoad := settings.GetOrCreate(c.Request.Context(), h.db)
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load settings failed"})
		return
	}
	c.JSON(http.StatusOK, formatSettings(row))
}

// updateSettingsRequest captures optional fields for settings updates.
type updateSettingsRequest struct {
	UserName                    *string  `json:"user_name"`                      // Optional display name.
	BaseCurrency                *string  `json:"base_currency"`                  // Optional reporting currency.
	AutopilotMode               *string  `json:"autopilot_mode"`                 // Optional execution mode.
	GuardrailMinCheckingFloor   *float64 `json:"guardrail_min_checking_floor"`   // Optional balance floor.
	GuardrailMaxCategoryDaily   *float64 `json:"guardrail_max_category_daily"`   // Optional daily cap; negative clears.
	GuardrailRiskPauseThreshold *float64 `json:"guardrail_risk_pause_threshold"` // Optional risk threshold.
}

// Update validates and applies settings changes.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body updateSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.GuardrailRiskPauseThreshold != nil {
		if *body.GuardrailRiskPauseThreshold < 0 || *body.GuardrailRiskPauseThreshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "guardrail_risk_pause_threshold must be between 0 and 1"})
			return
		}
	}

	row, errSave := settings.Save(c.Request.Context(), h.db, settings.SaveInput{
		UserName:                    body.UserName,
		BaseCurrency:                body.BaseCurrency,
		AutopilotMode:               body.AutopilotMode,
		GuardrailMinCheckingFloor:   body.GuardrailMinCheckingFloor,
		GuardrailMaxCategoryDaily:   body.GuardrailMaxCategoryDaily,
		GuardrailRiskPauseThreshold: body.GuardrailRiskPauseThreshold,
	})
	if errSave != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errSave.Error()})
		return
	}
	c.JSON(http.StatusOK, formatSettings(row))
}

// formatSettings converts the settings row into a response payload.
func formatSettings(row *models.UserSetting) gin.H {
	return gin.H{
		"user_name":                      row.UserName,
		"base_currency":                  row.BaseCurrency,
		"autopilot_mode":                 row.AutopilotMode,
		"guardrail_min_checking_floor":   row.GuardrailMinCheckingFloor,
		"guardrail_max_category_daily":   row.GuardrailMaxCategoryDaily,
		"guardrail_risk_pause_threshold": row.GuardrailRiskPauseThreshold,
	}
}
