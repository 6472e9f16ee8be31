// Package imports ingests transaction CSV files. It maps known
// alternate bank export headers onto the canonical column set, hashes
// each row for idempotent re-import and emits one engine event per
// newly created transaction.
package imports

import (
	"context"
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Canonical column names. date, description and amount are mandatory.
const (
	colDate        = "date"
	colDescription = "description"
	colAmount      = "amount"
	colAccount     = "account"
	colCategory    = "category"
	colMerchant    = "merchant"
	colCurrency    = "currency"
)

// altColumnMap translates known bank export headers to canonical ones.
var altColumnMap = map[string]string{
	"trans_date":       colDate,
	"amount_usd":       colAmount,
	"section":          colCategory,
	"foreign_currency": colCurrency,
	"card_last4":       colAccount,
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"02-Jan-2006",
	time.RFC3339,
}

// Result summarizes one ingest pass.
type Result struct {
	Created int            `json:"created"` // New transactions inserted.
	Skipped int            `json:"skipped"` // Duplicate rows by hash.
	Errors  []string       `json:"errors"`  // Per-row parse failures.
	Events  []engine.Event `json:"-"`       // One transaction event per created row.
}

// hashRow fingerprints a row on the fields that identify it across
// repeated exports of the same statement.
func hashRow(date, description, amount, account string) string {
	sum := sha1.Sum([]byte(date + "|" + description + "|" + amount + "|" + account))
	return hex.EncodeToString(sum[:])
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("imports: unrecognized date: %q", raw)
}

func normalizeHeader(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	if canonical, ok := altColumnMap[key]; ok {
		return canonical
	}
	return key
}

// IngestCSV reads a transaction CSV stream and inserts every row not
// seen before. Rows that fail to parse are reported and skipped;
// nothing about the stream aborts the whole import.
func IngestCSV(ctx context.Context, db *gorm.DB, reader io.Reader) (*Result, error) {
	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true

	header, errHeader := cr.Read()
	if errHeader != nil {
		return nil, fmt.Errorf("imports: read header: %w", errHeader)
	}
	index := make(map[string]int, len(header))
	for i, raw := range header {
		index[normalizeHeader(raw)] = i
	}
	for _, required := range []string{colDate, colDescription, colAmount} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("imports: missing required column: %s", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	result := &Result{}
	line := 1
	for {
		record, errRead := cr.Read()
		if errRead == io.EOF {
			break
		}
		line++
		if errRead != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, errRead))
			continue
		}

		rawDate := field(record, colDate)
		description := field(record, colDescription)
		rawAmount := field(record, colAmount)

		date, errDate := parseDate(rawDate)
		if errDate != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, errDate))
			continue
		}
		amount, errAmount := strconv.ParseFloat(strings.ReplaceAll(rawAmount, ",", ""), 64)
		if errAmount != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: bad amount %q", line, rawAmount))
			continue
		}

		account := field(record, colAccount)
		// card_last4 exports carry only the card digits.
		if idx, ok := index[colAccount]; ok && idx < len(header) {
			original := strings.ToLower(strings.TrimSpace(header[idx]))
			original = strings.ReplaceAll(original, " ", "_")
			if original == "card_last4" && account != "" {
				account = "Card " + account
			}
		}

		currency := strings.ToUpper(field(record, colCurrency))
		if currency == "" {
			currency = "USD"
		}

		txHash := hashRow(date.Format("2006-01-02"), description, rawAmount, account)
		var existing int64
		if errCount := db.WithContext(ctx).Model(&models.Transaction{}).
			Where("tx_hash = ?", txHash).
			Count(&existing).Error; errCount != nil {
			return nil, fmt.Errorf("imports: check hash: %w", errCount)
		}
		if existing > 0 {
			result.Skipped++
			continue
		}

		tx := models.Transaction{
			TxHash:      txHash,
			Date:        date,
			Description: description,
			Amount:      amount,
			Account:     account,
			Category:    field(record, colCategory),
			Merchant:    field(record, colMerchant),
			Currency:    currency,
		}
		if errCreate := db.WithContext(ctx).Create(&tx).Error; errCreate != nil {
			return nil, fmt.Errorf("imports: create transaction: %w", errCreate)
		}
		result.Created++
		result.Events = append(result.Events, engine.NewTransactionEvent(tx.ID))
	}

	log.WithFields(log.Fields{
		"created": result.Created,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	}).Info("CSV import finished")
	return result, nil
}
