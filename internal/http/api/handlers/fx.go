package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/flowledger/flowledger/internal/fx"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// FxHandler manages exchange rate endpoints.
type FxHandler struct {
	db *gorm.DB // Database handle for rates.
}

// NewFxHandler constructs an fx handler.
func NewFxHandler(db *gorm.DB) *FxHandler {
	return &FxHandler{db: db}
}

// List returns all live exchange rates.
func (h *FxHandler) List(c *gin.Context) {
	rows, errList := fx.ListRates(c.Request.Context(), h.db)
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list rates failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"base_currency":  row.BaseCurrency,
			"quote_currency": row.QuoteCurrency,
			"rate":           row.Rate,
			"source":         row.Source,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rates": out})
}

// upsertRateRequest captures the payload for setting a rate.
type upsertRateRequest struct {
	BaseCurrency  string  `json:"base_currency"`  // ISO code, e.g. USD.
	QuoteCurrency string  `json:"quote_currency"` // ISO code, e.g. EUR.
	Rate          float64 `json:"rate"`           // Units of quote per base.
	Source        string  `json:"source"`         // Rate provenance label.
	SnapshotDate  string  `json:"snapshot_date"`  // Optional, YYYY-MM-DD; also records a dated snapshot.
}

// Upsert sets a live rate and, when a snapshot date is given, records
// a dated snapshot alongside it.
func (h *FxHandler) Upsert(c *gin.Context) {
	var body upsertRateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	base := strings.ToUpper(strings.TrimSpace(body.BaseCurrency))
	quote := strings.ToUpper(strings.TrimSpace(body.QuoteCurrency))
	if base == "" || quote == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "base_currency and quote_currency are required"})
		return
	}
	if body.Rate <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rate must be positive"})
		return
	}

	row, errUpsert := fx.UpsertRate(c.Request.Context(), h.db, base, quote, body.Rate, body.Source)
	if errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert rate failed"})
		return
	}
	if snapDate := strings.TrimSpace(body.SnapshotDate); snapDate != "" {
		parsed, errParse := time.Parse("2006-01-02", snapDate)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "snapshot_date must be YYYY-MM-DD"})
			return
		}
		if _, errSnap := fx.UpsertSnapshot(c.Request.Context(), h.db, base, quote, body.Rate, parsed, body.Source); errSnap != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert snapshot failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"base_currency":  row.BaseCurrency,
		"quote_currency": row.QuoteCurrency,
		"rate":           row.Rate,
		"source":         row.Source,
	})
}
