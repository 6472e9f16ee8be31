package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/flowledger/flowledger/internal/db"
	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/imports"
	"github.com/flowledger/flowledger/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TransactionHandler serves transaction listing and CSV ingestion.
type TransactionHandler struct {
	db     *gorm.DB       // Database handle for transactions.
	runner *engine.Runner // Evaluation engine for ingest events.
}

// NewTransactionHandler constructs a transaction handler.
func NewTransactionHandler(conn *gorm.DB, runner *engine.Runner) *TransactionHandler {
	return &TransactionHandler{db: conn, runner: runner}
}

// List returns transactions newest first, filtered by query parameters.
func (h *TransactionHandler) List(c *gin.Context) {
	var (
		searchQ   = strings.TrimSpace(c.Query("search"))
		categoryQ = strings.TrimSpace(c.Query("category"))
		limitQ    = strings.TrimSpace(c.Query("limit"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.Transaction{})
	if searchQ != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		q = q.Where(db.CaseInsensitiveLikeExpr(h.db, "description"), pattern)
	}
	if categoryQ != "" {
		q = q.Where("category = ?", categoryQ)
	}
	limit := 100
	if limitQ != "" {
		if parsed, errParse := strconv.Atoi(limitQ); errParse == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	var rows []models.Transaction
	if errFind := q.Order("date DESC, id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list transactions failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatTransaction(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// Get fetches a transaction by ID.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var row models.Transaction
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatTransaction(&row))
}

// ImportCSV ingests a CSV upload and, unless evaluate=false, drives
// rule evaluation for every newly created transaction.
func (h *TransactionHandler) ImportCSV(c *gin.Context) {
	file, errFile := c.FormFile("file")
	if errFile != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	reader, errOpen := file.Open()
	if errOpen != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	defer reader.Close()

	result, errIngest := imports.IngestCSV(c.Request.Context(), h.db, reader)
	if errIngest != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errIngest.Error()})
		return
	}

	evaluate := strings.TrimSpace(c.Query("evaluate")) != "false"
	dryRun := strings.TrimSpace(c.Query("dry_run")) == "true"
	runCount := 0
	if evaluate {
		for _, event := range result.Events {
			runs, errEval := h.runner.EvaluateForEvent(c.Request.Context(), event, dryRun)
			runCount += len(runs)
			if errEval != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   "evaluation failed",
					"created": result.Created,
					"skipped": result.Skipped,
					"runs":    runCount,
				})
				return
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"created": result.Created,
		"skipped": result.Skipped,
		"errors":  result.Errors,
		"runs":    runCount,
	})
}

// formatTransaction converts a transaction into a response payload.
func formatTransaction(tx *models.Transaction) gin.H {
	return gin.H{
		"id":          tx.ID,
		"tx_hash":     tx.TxHash,
		"date":        tx.Date.Format("2006-01-02"),
		"description": tx.Description,
		"amount":      tx.Amount,
		"account":     tx.Account,
		"category":    tx.Category,
		"merchant":    tx.Merchant,
		"currency":    tx.Currency,
		"created_at":  tx.CreatedAt,
	}
}
