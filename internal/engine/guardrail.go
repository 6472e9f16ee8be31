package engine

import (
	"context"
	"fmt"

	"github.com/flowledger/flowledger/internal/models"
)

// Guardrail block reasons recorded in the run trace.
const (
	// GuardrailRiskSpike blocks when recent outflows spike above baseline.
	GuardrailRiskSpike = "risk_spike"
	// GuardrailCategoryDailyCap blocks when same-day category spend exceeds the cap.
	GuardrailCategoryDailyCap = "category_daily_cap"
)

// riskWindow is how many recent transactions feed the risk score.
const riskWindow = 30

// riskRecentOutflows is how many of the newest outflows form the
// "recent" average; the remaining outflows in the window are baseline.
const riskRecentOutflows = 7

// riskSpikeScore computes the spending-risk score in [0,1]: the
// relative growth of the average magnitude of the most recent
// outflows over the outflows preceding them. Fewer than 10 total
// transactions, or no outflow history, scores 0.
func (r *Runner) riskSpikeScore(ctx context.Context) (float64, error) {
	var txs []models.Transaction
	if errFind := r.db.WithContext(ctx).
		Order("date DESC, id DESC").
		Limit(riskWindow).
		Find(&txs).Error; errFind != nil {
		return 0, fmt.Errorf("engine: load risk window: %w", errFind)
	}
	if len(txs) < 10 {
		return 0, nil
	}

	var negatives []float64
	for _, tx := range txs {
		if tx.Amount < 0 {
			negatives = append(negatives, -tx.Amount)
		}
	}
	if len(negatives) == 0 {
		return 0, nil
	}

	recent := negatives
	baseline := negatives
	if len(negatives) > riskRecentOutflows {
		recent = negatives[:riskRecentOutflows]
		baseline = negatives[riskRecentOutflows:]
	}
	recentAvg := mean(recent)
	baselineAvg := mean(baseline)
	if baselineAvg <= 0 {
		return 0, nil
	}
	score := (recentAvg - baselineAvg) / baselineAvg
	if score < 0 {
		return 0, nil
	}
	if score > 1 {
		return 1, nil
	}
	return score, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// categoryDailyTotal sums the absolute value of all outflows on the
// same calendar date and in the same category as the triggering
// transaction. The triggering transaction is already persisted when
// rules run, so it is included in the sum.
func (r *Runner) categoryDailyTotal(ctx context.Context, tx *models.Transaction) (float64, error) {
	if tx == nil || tx.Category == "" {
		return 0, nil
	}
	var total float64
	if errScan := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("COALESCE(SUM(ABS(amount)), 0)").
		Where("date = ? AND category = ? AND amount < 0", tx.Date, tx.Category).
		Scan(&total).Error; errScan != nil {
		return 0, fmt.Errorf("engine: category daily total: %w", errScan)
	}
	return total, nil
}
