package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/flowledger/flowledger/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Runner evaluates rules against events and records the outcome in
// the run ledger. It holds no state between calls beyond its injected
// dependencies; the datastore's unique constraints are the only
// coordination mechanism.
type Runner struct {
	db       *gorm.DB
	fx       Converter
	balance  BalanceSource
	settings SettingsSource
	now      func() time.Time
}

// NewRunner constructs a runner with its collaborator dependencies.
func NewRunner(db *gorm.DB, fx Converter, balance BalanceSource, settings SettingsSource) *Runner {
	return &Runner{
		db:       db,
		fx:       fx,
		balance:  balance,
		settings: settings,
		now:      time.Now,
	}
}

// SetClock overrides the evaluation clock. Used by tests and the
// simulator; a nil clock is ignored.
func (r *Runner) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// SortRules orders rules for batch evaluation: priority descending,
// ties broken by creation time ascending, then ID ascending. The
// order is total and reproducible.
func SortRules(rules []models.Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

// RunRule evaluates one rule against one event and returns the
// recorded run. Idempotency comes first: an existing run for
// (rule, event key) is returned unchanged with no re-evaluation,
// even if the rule definition has since changed.
func (r *Runner) RunRule(
	ctx context.Context,
	rule models.Rule,
	event Event,
	tx *models.Transaction,
	dryRun bool,
) (*models.Run, []models.ActionResult, error) {
	var existing models.Run
	errFind := r.db.WithContext(ctx).
		Where("rule_id = ? AND event_key = ?", rule.ID, event.Key).
		First(&existing).Error
	if errFind == nil {
		return &existing, nil, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("engine: lookup run: %w", errFind)
	}

	settings, errSettings := r.settings.Load(ctx)
	if errSettings != nil {
		return nil, nil, fmt.Errorf("engine: load settings: %w", errSettings)
	}
	baseCurrency := settings.BaseCurrency
	if baseCurrency == "" {
		baseCurrency = "USD"
	}
	pol := policyFor(settings.AutopilotMode, dryRun)

	trace := Trace{
		Conditions:    []ConditionTrace{},
		Actions:       []ActionTrace{},
		DryRun:        dryRun,
		ExecutionMode: pol.mode,
		RuleFired: RuleFiredTrace{
			RuleID:        rule.ID,
			RuleName:      rule.Name,
			Priority:      rule.Priority,
			BaseCurrency:  baseCurrency,
			TriggerType:   rule.TriggerType,
			TriggerConfig: json.RawMessage(rule.TriggerConfig),
		},
	}

	latestBalance, errBalance := r.balance.Latest(ctx)
	if errBalance != nil {
		return nil, nil, fmt.Errorf("engine: latest balance: %w", errBalance)
	}

	if !Matches(rule, event, tx) {
		trace.Explainability = Explainability{
			WhyRecommendation: buildWhyRecommendation(false, 0, 0, pol.mode),
			WhatIfSkip:        "No action to skip because no recommendation was produced.",
			ConfidenceBadge:   BadgeHigh,
		}
		return r.writeRun(ctx, rule, event, models.RunSkipped, trace, executionResult{})
	}
	trace.Trigger = true

	// The score is always computed and recorded; only the veto is
	// gated on dry run, so previews never report false blocks.
	riskScore, errRisk := r.riskSpikeScore(ctx)
	if errRisk != nil {
		return nil, nil, errRisk
	}
	trace.Guardrails.RiskSpikeScore = riskScore
	trace.Guardrails.RiskPauseThreshold = settings.RiskPauseThreshold
	if !dryRun && riskScore >= settings.RiskPauseThreshold {
		trace.Guardrails.Blocked = GuardrailRiskSpike
		trace.Explainability = Explainability{
			WhyRecommendation: buildWhyRecommendation(true, 0, 0, pol.mode),
			WhatIfSkip:        "Skipping is advised right now because risk guardrails paused execution.",
			ConfidenceBadge:   confidenceBadgeForRun(models.RunGuardrailBlocked, riskScore),
		}
		return r.writeRun(ctx, rule, event, models.RunGuardrailBlocked, trace, executionResult{})
	}

	if !dryRun && settings.CategoryDailyCap != nil && tx != nil && tx.Amount < 0 {
		categorySpend, errSpend := r.categoryDailyTotal(ctx, tx)
		if errSpend != nil {
			return nil, nil, errSpend
		}
		trace.Guardrails.CategoryDailyTotal = float64Ptr(categorySpend)
		trace.Guardrails.CategoryDailyCap = settings.CategoryDailyCap
		if categorySpend > *settings.CategoryDailyCap {
			trace.Guardrails.Blocked = GuardrailCategoryDailyCap
			trace.Explainability = Explainability{
				WhyRecommendation: buildWhyRecommendation(true, 0, 0, pol.mode),
				WhatIfSkip:        "Skipping is advised because category daily spend exceeded your cap.",
				ConfidenceBadge:   confidenceBadgeForRun(models.RunGuardrailBlocked, riskScore),
			}
			return r.writeRun(ctx, rule, event, models.RunGuardrailBlocked, trace, executionResult{})
		}
	}

	conditions, errConds := DecodeConditions(rule.Conditions)
	if errConds != nil {
		// A malformed condition list fails closed, same as an unknown
		// condition kind.
		log.WithError(errConds).WithField("rule_id", rule.ID).Warn("malformed condition list")
		trace.Conditions = append(trace.Conditions, ConditionTrace{Message: "malformed condition list"})
		trace.Explainability = Explainability{
			WhyRecommendation: buildWhyRecommendation(true, 1, 0, pol.mode),
			WhatIfSkip:        "No actions executed because conditions did not pass.",
			ConfidenceBadge:   confidenceBadgeForRun(models.RunConditionFailed, riskScore),
		}
		return r.writeRun(ctx, rule, event, models.RunConditionFailed, trace, executionResult{})
	}

	now := r.now().UTC()
	for _, cond := range conditions {
		ok, message, errCheck := r.checkCondition(ctx, cond, tx, latestBalance, baseCurrency, now)
		if errCheck != nil {
			return nil, nil, errCheck
		}
		trace.Conditions = append(trace.Conditions, ConditionTrace{Condition: cond, OK: ok, Message: message})
		if !ok {
			trace.Explainability = Explainability{
				WhyRecommendation: buildWhyRecommendation(true, len(trace.Conditions), 0, pol.mode),
				WhatIfSkip:        "No actions executed because conditions did not pass.",
				ConfidenceBadge:   confidenceBadgeForRun(models.RunConditionFailed, riskScore),
			}
			return r.writeRun(ctx, rule, event, models.RunConditionFailed, trace, executionResult{})
		}
	}

	actions, errActions := DecodeActions(rule.Actions)
	var result executionResult
	if errActions != nil {
		// A malformed action list is a hard failure of the first
		// action, not a skip.
		log.WithError(errActions).WithField("rule_id", rule.ID).Warn("malformed action list")
		result = executionResult{
			Status: models.RunActionFailed,
			Outcomes: []actionOutcome{{
				Status:  models.ActionFailed,
				Message: "Malformed action list",
			}},
		}
	} else {
		var errExec error
		result, errExec = r.executeActions(ctx, actions, tx, latestBalance, pol, settings.MinCheckingFloor)
		if errExec != nil {
			return nil, nil, errExec
		}
	}

	payloads := make([]ActionPayload, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		trace.Actions = append(trace.Actions, ActionTrace{
			Action:  outcome.Action,
			Status:  outcome.Status,
			Message: outcome.Message,
			Payload: outcome.Payload,
		})
		payloads = append(payloads, outcome.Payload)
	}
	trace.Explainability = Explainability{
		WhyRecommendation: buildWhyRecommendation(true, len(trace.Conditions), len(result.Outcomes), pol.mode),
		WhatIfSkip:        buildWhatIfSkip(payloads),
		ConfidenceBadge:   confidenceBadgeForRun(result.Status, riskScore),
	}

	return r.writeRun(ctx, rule, event, result.Status, trace, result)
}

// writeRun commits the run, its action results, pod balance deltas
// and created tasks as a single atomic unit. A second writer losing
// the (rule, event key) uniqueness race detects the conflict and
// returns the winner's run.
func (r *Runner) writeRun(
	ctx context.Context,
	rule models.Rule,
	event Event,
	status string,
	trace Trace,
	result executionResult,
) (*models.Run, []models.ActionResult, error) {
	traceJSON, errMarshal := json.Marshal(trace)
	if errMarshal != nil {
		return nil, nil, fmt.Errorf("engine: marshal trace: %w", errMarshal)
	}

	run := models.Run{
		RuleID:   rule.ID,
		EventKey: event.Key,
		Status:   status,
		Trace:    datatypes.JSON(traceJSON),
	}
	var results []models.ActionResult

	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&run).Error; errCreate != nil {
			return errCreate
		}
		for _, outcome := range result.Outcomes {
			payloadJSON, errPayload := json.Marshal(outcome.Payload)
			if errPayload != nil {
				return fmt.Errorf("marshal action payload: %w", errPayload)
			}
			row := models.ActionResult{
				RunID:       run.ID,
				ActionIndex: outcome.Index,
				Status:      outcome.Status,
				Message:     outcome.Message,
				Payload:     datatypes.JSON(payloadJSON),
			}
			if errCreate := tx.Create(&row).Error; errCreate != nil {
				return errCreate
			}
			results = append(results, row)
		}
		for podID, delta := range result.PodDeltas {
			if errUpdate := tx.Model(&models.Pod{}).
				Where("id = ?", podID).
				UpdateColumn("current_balance", gorm.Expr("current_balance + ?", delta)).Error; errUpdate != nil {
				return errUpdate
			}
		}
		for i := range result.Tasks {
			if errCreate := tx.Create(&result.Tasks[i]).Error; errCreate != nil {
				return errCreate
			}
		}
		return nil
	})
	if errTx != nil {
		// Most likely a concurrent caller won the (rule_id, event_key)
		// insert; absorb the conflict by returning the winner's run.
		var winner models.Run
		if errFind := r.db.WithContext(ctx).
			Where("rule_id = ? AND event_key = ?", rule.ID, event.Key).
			First(&winner).Error; errFind == nil {
			return &winner, nil, nil
		}
		return nil, nil, fmt.Errorf("engine: record run: %w", errTx)
	}

	return &run, results, nil
}

// EvaluateForEvent is the batch entry point used by the scheduler and
// ingestion hooks: it evaluates every enabled, active rule whose
// trigger matches the event, in deterministic priority order. Rules
// are independent policies; every match runs, not just the first.
func (r *Runner) EvaluateForEvent(ctx context.Context, event Event, dryRun bool) ([]models.Run, error) {
	var tx *models.Transaction
	if event.TransactionID != 0 {
		var row models.Transaction
		errFind := r.db.WithContext(ctx).First(&row, event.TransactionID).Error
		switch {
		case errFind == nil:
			tx = &row
		case errors.Is(errFind, gorm.ErrRecordNotFound):
			// Event references a transaction that no longer exists;
			// transaction-triggered rules simply will not match.
		default:
			return nil, fmt.Errorf("engine: load transaction: %w", errFind)
		}
	}

	var rules []models.Rule
	if errFind := r.db.WithContext(ctx).
		Where("enabled = ? AND lifecycle_state = ?", true, models.LifecycleActive).
		Find(&rules).Error; errFind != nil {
		return nil, fmt.Errorf("engine: load rules: %w", errFind)
	}
	SortRules(rules)

	var runs []models.Run
	for _, rule := range rules {
		if !Matches(rule, event, tx) {
			continue
		}
		run, _, errRun := r.RunRule(ctx, rule, event, tx, dryRun)
		if errRun != nil {
			return runs, errRun
		}
		runs = append(runs, *run)
	}
	return runs, nil
}
