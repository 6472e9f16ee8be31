// Package balance records and serves balance snapshots. The latest
// snapshot is the engine's view of "current balance" for balance
// conditions and floor projections.
package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/gorm"
)

// Record appends a balance snapshot.
func Record(ctx context.Context, db *gorm.DB, sourceType string, sourceID uint64, value float64) (*models.BalanceSnapshot, error) {
	row := models.BalanceSnapshot{SourceType: sourceType, SourceID: sourceID, Balance: value}
	if errCreate := db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("balance: record snapshot: %w", errCreate)
	}
	return &row, nil
}

// Source is the DB-backed implementation of engine.BalanceSource.
type Source struct {
	db *gorm.DB // Snapshot store handle.
}

// NewSource constructs a DB-backed balance source.
func NewSource(db *gorm.DB) *Source {
	return &Source{db: db}
}

// Latest returns the most recent snapshot balance, or nil when no
// snapshot has been recorded.
func (s *Source) Latest(ctx context.Context) (*float64, error) {
	var row models.BalanceSnapshot
	errFind := s.db.WithContext(ctx).
		Order("snapshot_at DESC, id DESC").
		First(&row).Error
	if errFind == nil {
		v := row.Balance
		return &v, nil
	}
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("balance: latest snapshot: %w", errFind)
}
