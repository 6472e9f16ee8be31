package handlers

import (
	"net/http"
	"strings"

	"github.com/flowledger/flowledger/internal/balance"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BalanceHandler manages checking balance snapshot endpoints.
type BalanceHandler struct {
	db *gorm.DB // Database handle for snapshots.
}

// NewBalanceHandler constructs a balance handler.
func NewBalanceHandler(db *gorm.DB) *BalanceHandler {
	return &BalanceHandler{db: db}
}

// recordBalanceRequest captures the payload for recording a snapshot.
type recordBalanceRequest struct {
	SourceType string  `json:"source_type"` // Snapshot origin, e.g. manual.
	SourceID   uint64  `json:"source_id"`   // Optional origin row ID.
	Balance    float64 `json:"balance"`     // Checking balance value.
}

// Record appends a balance snapshot.
func (h *BalanceHandler) Record(c *gin.Context) {
	var body recordBalanceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sourceType := strings.TrimSpace(body.SourceType)
	if sourceType == "" {
		sourceType = "manual"
	}

	row, errRecord := balance.Record(c.Request.Context(), h.db, sourceType, body.SourceID, body.Balance)
	if errRecord != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record balance failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          row.ID,
		"source_type": row.SourceType,
		"source_id":   row.SourceID,
		"balance":     row.Balance,
		"snapshot_at": row.SnapshotAt,
	})
}

// Latest returns the most recent snapshot, null when none exists.
func (h *BalanceHandler) Latest(c *gin.Context) {
	source := balance.NewSource(h.db)
	latest, errLatest := source.Latest(c.Request.Context())
	if errLatest != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": latest})
}
