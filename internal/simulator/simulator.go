// Package simulator replays a rule against recent history without
// side effects, so a draft can be vetted before promotion.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/models"
	"gorm.io/gorm"
)

// PodImpact aggregates what a pod would have received.
type PodImpact struct {
	PodID   uint64  `json:"pod_id"`
	PodName string  `json:"pod_name"`
	Total   float64 `json:"total"`
}

// Report summarizes one simulation pass.
type Report struct {
	RuleID       uint64      `json:"rule_id"`
	Days         int         `json:"days"`
	Transactions int         `json:"transactions"` // Transactions replayed.
	Matched      int         `json:"matched"`      // Runs where the trigger fired.
	Completed    int         `json:"completed"`
	Failed       int         `json:"failed"` // condition_failed plus action_failed.
	TasksCreated int         `json:"tasks_created"`
	PodImpacts   []PodImpact `json:"pod_impacts"`
	Warnings     []string    `json:"warnings"`
}

// Simulate dry-runs the rule over transactions from the last days
// days. Every evaluation is a dry run: no pod balances move, no tasks
// are created and guardrails report but never veto.
func Simulate(ctx context.Context, db *gorm.DB, runner *engine.Runner, ruleID uint64, days int) (*Report, error) {
	if days <= 0 {
		days = 30
	}

	var rule models.Rule
	if errFind := db.WithContext(ctx).First(&rule, ruleID).Error; errFind != nil {
		return nil, fmt.Errorf("simulator: load rule: %w", errFind)
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	var txs []models.Transaction
	if errFind := db.WithContext(ctx).
		Where("date >= ?", since).
		Order("date ASC, id ASC").
		Find(&txs).Error; errFind != nil {
		return nil, fmt.Errorf("simulator: load transactions: %w", errFind)
	}

	report := &Report{RuleID: ruleID, Days: days, Transactions: len(txs)}
	podTotals := map[uint64]float64{}

	for i := range txs {
		tx := &txs[i]
		event := engine.NewSimulationEvent(ruleID, tx.ID)
		run, _, errRun := runner.RunRule(ctx, rule, event, tx, true)
		if errRun != nil {
			return nil, errRun
		}
		if run.Status == models.RunSkipped {
			continue
		}
		report.Matched++

		var trace engine.Trace
		if errDecode := json.Unmarshal(run.Trace, &trace); errDecode != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("transaction %d: unreadable trace", tx.ID))
			continue
		}

		switch run.Status {
		case models.RunCompleted:
			report.Completed++
		case models.RunConditionFailed:
			report.Failed++
		case models.RunActionFailed:
			report.Failed++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("transaction %d (%s): an action would fail", tx.ID, tx.Description))
		}

		for _, action := range trace.Actions {
			if action.Status != models.ActionSuccess {
				continue
			}
			if action.Payload.Allocated != nil && action.Payload.PodID != 0 {
				podTotals[action.Payload.PodID] += *action.Payload.Allocated
			}
			if action.Payload.TaskTitle != "" {
				report.TasksCreated++
			}
		}
	}

	for podID, total := range podTotals {
		impact := PodImpact{PodID: podID, Total: total}
		var pod models.Pod
		if errFind := db.WithContext(ctx).First(&pod, podID).Error; errFind == nil {
			impact.PodName = pod.Name
		}
		report.PodImpacts = append(report.PodImpacts, impact)
	}
	return report, nil
}
