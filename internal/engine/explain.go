package engine

import (
	"fmt"
	"strings"

	"github.com/flowledger/flowledger/internal/models"
)

// Confidence badge values.
const (
	// BadgeHigh marks outcomes the user can act on without review.
	BadgeHigh = "high"
	// BadgeMedium marks outcomes worth a look.
	BadgeMedium = "medium"
	// BadgeLow marks outcomes needing review.
	BadgeLow = "low"
)

// buildWhyRecommendation summarizes what the engine considered.
func buildWhyRecommendation(triggerHit bool, conditionCount, actionCount int, executionMode string) string {
	if !triggerHit {
		return "No recommendation because the trigger did not match this event."
	}
	return fmt.Sprintf(
		"Recommendation produced because trigger matched, %d condition(s) were evaluated, and %d action(s) were attempted in %s mode.",
		conditionCount, actionCount, executionMode,
	)
}

// buildWhatIfSkip summarizes the unrealized impact of skipping the
// recommendation: the total that would stay unallocated and the tasks
// that would not be created.
func buildWhatIfSkip(payloads []ActionPayload) string {
	allocated := 0.0
	tasks := 0
	for _, p := range payloads {
		if p.Allocated != nil {
			allocated += *p.Allocated
		}
		if p.TaskTitle != "" {
			tasks++
		}
	}
	allocated = round2(allocated)
	if allocated <= 0 && tasks == 0 {
		return "Skipping this recommendation likely has minimal immediate impact based on this run."
	}
	var parts []string
	if allocated > 0 {
		parts = append(parts, fmt.Sprintf("%.2f would remain unallocated", allocated))
	}
	if tasks > 0 {
		parts = append(parts, fmt.Sprintf("%d manual payment task(s) would not be generated", tasks))
	}
	return "If you skip this: " + strings.Join(parts, " and ") + "."
}

// confidenceBadgeForRun derives the coarse confidence badge from the
// terminal status and the computed risk score.
func confidenceBadgeForRun(status string, riskSpikeScore float64) string {
	if (status == models.RunCompleted || status == models.RunSkipped) && riskSpikeScore < 0.3 {
		return BadgeHigh
	}
	switch status {
	case models.RunGuardrailBlocked, models.RunActionFailed, models.RunConditionFailed:
		return BadgeMedium
	}
	return BadgeLow
}
