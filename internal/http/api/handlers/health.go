package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/flowledger/flowledger/internal/health"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler serves component heartbeat status.
type HealthHandler struct {
	db *gorm.DB // Database handle for heartbeats.
}

// NewHealthHandler constructs a health handler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Status reports every recorded component heartbeat plus a liveness ok.
func (h *HealthHandler) Status(c *gin.Context) {
	rows, errList := health.All(c.Request.Context(), h.db)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "health query failed"})
		return
	}
	components := make(map[string]any, len(rows))
	for _, row := range rows {
		components[row.Component] = gin.H{
			"payload":    json.RawMessage(row.Payload),
			"updated_at": row.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "components": components})
}
