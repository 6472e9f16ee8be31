package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/flowledger/flowledger/internal/models"
)

// round2 rounds to two decimal places at the point of computation.
// Monetary results are never accumulated in full precision and
// rounded once; simulations must reproduce cent-level outcomes.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// fnum renders a float the way users typed it (no trailing zeros).
func fnum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// checkCondition evaluates one condition against the event context
// and returns the verdict plus a human-readable explanation. Unknown
// kinds evaluate false: an unparseable or future-version condition
// must never be treated as satisfied.
func (r *Runner) checkCondition(
	ctx context.Context,
	cond Condition,
	tx *models.Transaction,
	latestBalance *float64,
	baseCurrency string,
	now time.Time,
) (bool, string, error) {
	switch cond.Type {
	case CondAmountGTE, CondAmountLTE:
		value, okValue := cond.floatValue()
		if !okValue {
			return false, "malformed amount condition", nil
		}
		op := ">="
		if cond.Type == CondAmountLTE {
			op = "<="
		}
		if tx == nil {
			return false, fmt.Sprintf("amount n/a %s %s %s", baseCurrency, op, fnum(value)), nil
		}
		from := tx.Currency
		if from == "" {
			from = baseCurrency
		}
		at := tx.Date
		converted, errConvert := r.fx.Convert(ctx, tx.Amount, from, baseCurrency, &at)
		if errConvert != nil {
			return false, "", fmt.Errorf("engine: convert amount: %w", errConvert)
		}
		ok := converted >= value
		if cond.Type == CondAmountLTE {
			ok = converted <= value
		}
		return ok, fmt.Sprintf("amount %s %s %s %s", fnum(round2(converted)), baseCurrency, op, fnum(value)), nil

	case CondCurrencyEq:
		expected := strings.ToUpper(strings.TrimSpace(cond.stringValue()))
		if tx == nil {
			return false, fmt.Sprintf("currency n/a == %s", expected), nil
		}
		got := strings.ToUpper(tx.Currency)
		if got == "" {
			got = strings.ToUpper(baseCurrency)
		}
		return got == expected, fmt.Sprintf("currency %s == %s", got, expected), nil

	case CondDayOfMonthEq:
		value, okValue := cond.floatValue()
		if !okValue {
			return false, "malformed day_of_month condition", nil
		}
		day := now.Day()
		return day == int(value), fmt.Sprintf("day %d == %d", day, int(value)), nil

	case CondBalanceGTE:
		value, okValue := cond.floatValue()
		if !okValue {
			return false, "malformed balance condition", nil
		}
		if latestBalance == nil {
			return false, fmt.Sprintf("balance n/a >= %s", fnum(value)), nil
		}
		return *latestBalance >= value, fmt.Sprintf("balance %s >= %s", fnum(*latestBalance), fnum(value)), nil

	default:
		return false, "unknown condition", nil
	}
}
