// Package fx stores currency conversion rates and implements the
// engine's Converter dependency. Rates come in two layers: dated
// snapshots for historical conversions and current rates as the
// fallback; inverse pairs are consulted when a direct rate is absent.
package fx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/gorm"
)

// defaultRates seed a fresh database with a usable rate table.
var defaultRates = map[[2]string]float64{
	{"USD", "EUR"}: 0.92,
	{"EUR", "USD"}: 1.09,
	{"USD", "GBP"}: 0.79,
	{"GBP", "USD"}: 1.27,
	{"USD", "JPY"}: 150.0,
	{"JPY", "USD"}: 0.0067,
}

// EnsureDefaults inserts the seed rates that are not present yet and
// returns how many were created.
func EnsureDefaults(ctx context.Context, db *gorm.DB) (int, error) {
	created := 0
	for pair, rate := range defaultRates {
		var existing models.FxRate
		errFind := db.WithContext(ctx).
			Where("base_currency = ? AND quote_currency = ?", pair[0], pair[1]).
			First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return created, fmt.Errorf("fx: lookup rate: %w", errFind)
		}
		row := models.FxRate{BaseCurrency: pair[0], QuoteCurrency: pair[1], Rate: rate, Source: "default"}
		if errCreate := db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return created, fmt.Errorf("fx: seed rate: %w", errCreate)
		}
		created++
	}
	return created, nil
}

// ListRates returns all current rates ordered by pair.
func ListRates(ctx context.Context, db *gorm.DB) ([]models.FxRate, error) {
	var rows []models.FxRate
	if errFind := db.WithContext(ctx).
		Order("base_currency ASC, quote_currency ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("fx: list rates: %w", errFind)
	}
	return rows, nil
}

// UpsertRate creates or updates the current rate for a pair.
func UpsertRate(ctx context.Context, db *gorm.DB, baseCurrency, quoteCurrency string, rate float64, source string) (*models.FxRate, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	quote := strings.ToUpper(strings.TrimSpace(quoteCurrency))
	if base == "" || quote == "" {
		return nil, fmt.Errorf("fx: both base and quote currency are required")
	}
	if rate <= 0 {
		return nil, fmt.Errorf("fx: rate must be positive")
	}
	if source == "" {
		source = "manual"
	}

	var row models.FxRate
	errFind := db.WithContext(ctx).
		Where("base_currency = ? AND quote_currency = ?", base, quote).
		First(&row).Error
	switch {
	case errFind == nil:
		row.Rate = rate
		row.Source = source
		if errSave := db.WithContext(ctx).Save(&row).Error; errSave != nil {
			return nil, fmt.Errorf("fx: update rate: %w", errSave)
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = models.FxRate{BaseCurrency: base, QuoteCurrency: quote, Rate: rate, Source: source}
		if errCreate := db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return nil, fmt.Errorf("fx: create rate: %w", errCreate)
		}
	default:
		return nil, fmt.Errorf("fx: lookup rate: %w", errFind)
	}
	return &row, nil
}

// UpsertSnapshot creates or updates a dated rate snapshot for a pair.
func UpsertSnapshot(ctx context.Context, db *gorm.DB, baseCurrency, quoteCurrency string, rate float64, snapshotDate time.Time, source string) (*models.FxRateSnapshot, error) {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	quote := strings.ToUpper(strings.TrimSpace(quoteCurrency))
	if base == "" || quote == "" {
		return nil, fmt.Errorf("fx: both base and quote currency are required")
	}
	if rate <= 0 {
		return nil, fmt.Errorf("fx: rate must be positive")
	}
	if source == "" {
		source = "manual"
	}
	day := truncateToDay(snapshotDate)

	var row models.FxRateSnapshot
	errFind := db.WithContext(ctx).
		Where("base_currency = ? AND quote_currency = ? AND snapshot_date = ?", base, quote, day).
		First(&row).Error
	switch {
	case errFind == nil:
		row.Rate = rate
		row.Source = source
		if errSave := db.WithContext(ctx).Save(&row).Error; errSave != nil {
			return nil, fmt.Errorf("fx: update snapshot: %w", errSave)
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = models.FxRateSnapshot{BaseCurrency: base, QuoteCurrency: quote, SnapshotDate: day, Rate: rate, Source: source}
		if errCreate := db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return nil, fmt.Errorf("fx: create snapshot: %w", errCreate)
		}
	default:
		return nil, fmt.Errorf("fx: lookup snapshot: %w", errFind)
	}
	return &row, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Service is the DB-backed implementation of engine.Converter.
type Service struct {
	db *gorm.DB // Rate store handle.
}

// NewService constructs a converter over the rate store.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Convert normalizes an amount between currencies. Identical
// currencies convert 1:1; a missing pair falls back to the inverse
// rate, then to 1.0 so unknown currencies degrade to a no-op rather
// than an error.
func (s *Service) Convert(ctx context.Context, amount float64, fromCurrency, toCurrency string, at *time.Time) (float64, error) {
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	if from == "" {
		from = "USD"
	}
	if to == "" {
		to = "USD"
	}
	if from == to {
		return amount, nil
	}

	rate, errRate := s.effectiveRate(ctx, from, to, at)
	if errRate != nil {
		return 0, errRate
	}
	return amount * rate, nil
}

// effectiveRate resolves the conversion rate: dated snapshots first
// (direct, then inverse, at or before the requested date), then
// current rates (direct, then inverse), then 1.0.
func (s *Service) effectiveRate(ctx context.Context, from, to string, at *time.Time) (float64, error) {
	if at != nil {
		day := truncateToDay(*at)

		var directSnap models.FxRateSnapshot
		errDirect := s.db.WithContext(ctx).
			Where("base_currency = ? AND quote_currency = ? AND snapshot_date <= ?", from, to, day).
			Order("snapshot_date DESC").
			First(&directSnap).Error
		if errDirect == nil {
			return directSnap.Rate, nil
		}
		if !errors.Is(errDirect, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("fx: snapshot lookup: %w", errDirect)
		}

		var inverseSnap models.FxRateSnapshot
		errInverse := s.db.WithContext(ctx).
			Where("base_currency = ? AND quote_currency = ? AND snapshot_date <= ?", to, from, day).
			Order("snapshot_date DESC").
			First(&inverseSnap).Error
		if errInverse == nil && inverseSnap.Rate != 0 {
			return 1.0 / inverseSnap.Rate, nil
		}
		if errInverse != nil && !errors.Is(errInverse, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("fx: snapshot lookup: %w", errInverse)
		}
	}

	var direct models.FxRate
	errDirect := s.db.WithContext(ctx).
		Where("base_currency = ? AND quote_currency = ?", from, to).
		First(&direct).Error
	if errDirect == nil {
		return direct.Rate, nil
	}
	if !errors.Is(errDirect, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("fx: rate lookup: %w", errDirect)
	}

	var inverse models.FxRate
	errInverse := s.db.WithContext(ctx).
		Where("base_currency = ? AND quote_currency = ?", to, from).
		First(&inverse).Error
	if errInverse == nil && inverse.Rate != 0 {
		return 1.0 / inverse.Rate, nil
	}
	if errInverse != nil && !errors.Is(errInverse, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("fx: rate lookup: %w", errInverse)
	}

	return 1.0, nil
}
