package engine

import (
	"context"
	"time"
)

// Converter normalizes amounts into the base currency. Implemented by
// the FX service; tests substitute fakes.
type Converter interface {
	Convert(ctx context.Context, amount float64, fromCurrency, toCurrency string, at *time.Time) (float64, error)
}

// BalanceSource yields the most recent known balance snapshot, or nil
// when none has been recorded yet.
type BalanceSource interface {
	Latest(ctx context.Context) (*float64, error)
}

// Settings carries the read-only user knobs the engine consumes.
type Settings struct {
	BaseCurrency       string   // Reporting currency, defaults to USD.
	AutopilotMode      string   // Execution mode for non-dry runs.
	MinCheckingFloor   float64  // Balance floor allocations must respect.
	CategoryDailyCap   *float64 // Optional per-category daily outflow cap.
	RiskPauseThreshold float64  // Risk score at which guardrails pause runs.
}

// SettingsSource loads the current user settings.
type SettingsSource interface {
	Load(ctx context.Context) (Settings, error)
}
