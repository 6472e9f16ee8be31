// Package versions owns the append-only rule version ledger:
// snapshots of a rule's evaluable fields, human-readable diffs
// between versions, and rollback-as-new-version. History is never
// truncated or rewritten.
package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/flowledger/flowledger/internal/models"
	"github.com/pmezard/go-difflib/difflib"
	"gorm.io/gorm"
)

// snapshotRetries bounds the re-reads when two writers race for the
// same (rule_id, version_number) slot.
const snapshotRetries = 3

// ErrVersionNotFound is returned when a rule has no such version.
var ErrVersionNotFound = errors.New("versions: version not found")

// Snapshot copies the rule's evaluable fields into a new version
// numbered one past the rule's current maximum. The unique index on
// (rule_id, version_number) is the authoritative guard against
// concurrent snapshots; a losing writer re-reads and retries.
func Snapshot(ctx context.Context, db *gorm.DB, rule *models.Rule, changeNote string, isRollback bool) (*models.RuleVersion, error) {
	if rule == nil || rule.ID == 0 {
		return nil, fmt.Errorf("versions: rule must be persisted before snapshotting")
	}

	var lastErr error
	for attempt := 0; attempt < snapshotRetries; attempt++ {
		var maxVersion int
		if errScan := db.WithContext(ctx).
			Model(&models.RuleVersion{}).
			Select("COALESCE(MAX(version_number), 0)").
			Where("rule_id = ?", rule.ID).
			Scan(&maxVersion).Error; errScan != nil {
			return nil, fmt.Errorf("versions: read max version: %w", errScan)
		}

		version := models.RuleVersion{
			RuleID:         rule.ID,
			VersionNumber:  maxVersion + 1,
			Name:           rule.Name,
			Priority:       rule.Priority,
			TriggerType:    rule.TriggerType,
			TriggerConfig:  rule.TriggerConfig,
			Conditions:     rule.Conditions,
			Actions:        rule.Actions,
			Enabled:        rule.Enabled,
			LifecycleState: rule.LifecycleState,
			ChangeNote:     changeNote,
			IsRollback:     isRollback,
		}
		if errCreate := db.WithContext(ctx).Create(&version).Error; errCreate != nil {
			lastErr = errCreate
			continue
		}
		return &version, nil
	}
	return nil, fmt.Errorf("versions: snapshot rule %d: %w", rule.ID, lastErr)
}

// List returns a rule's versions, newest first.
func List(ctx context.Context, db *gorm.DB, ruleID uint64) ([]models.RuleVersion, error) {
	var rows []models.RuleVersion
	if errFind := db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("version_number DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("versions: list: %w", errFind)
	}
	return rows, nil
}

// Get returns one version of a rule.
func Get(ctx context.Context, db *gorm.DB, ruleID uint64, versionNumber int) (*models.RuleVersion, error) {
	var row models.RuleVersion
	errFind := db.WithContext(ctx).
		Where("rule_id = ? AND version_number = ?", ruleID, versionNumber).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rule %d has no version %d: %w", ruleID, versionNumber, ErrVersionNotFound)
		}
		return nil, fmt.Errorf("versions: get: %w", errFind)
	}
	return &row, nil
}

// versionPayload renders a version's evaluable fields as canonical
// key-sorted JSON. Maps marshal with sorted keys, which keeps diffs
// stable across field ordering.
func versionPayload(v *models.RuleVersion) (string, error) {
	payload := map[string]any{
		"name":            v.Name,
		"priority":        v.Priority,
		"trigger_type":    v.TriggerType,
		"trigger_config":  decodeOr(v.TriggerConfig, map[string]any{}),
		"conditions":      decodeOr(v.Conditions, []any{}),
		"actions":         decodeOr(v.Actions, []any{}),
		"enabled":         v.Enabled,
		"lifecycle_state": v.LifecycleState,
	}
	out, errMarshal := json.MarshalIndent(payload, "", "  ")
	if errMarshal != nil {
		return "", fmt.Errorf("versions: render payload: %w", errMarshal)
	}
	return string(out), nil
}

func decodeOr(raw []byte, fallback any) any {
	if len(raw) == 0 {
		return fallback
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return fallback
	}
	return out
}

// Diff renders a unified textual diff between two versions' evaluable
// fields.
func Diff(before, after *models.RuleVersion) (string, error) {
	beforeText, errBefore := versionPayload(before)
	if errBefore != nil {
		return "", errBefore
	}
	afterText, errAfter := versionPayload(after)
	if errAfter != nil {
		return "", errAfter
	}
	diff, errDiff := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(beforeText),
		B:        difflib.SplitLines(afterText),
		FromFile: fmt.Sprintf("v%d", before.VersionNumber),
		ToFile:   fmt.Sprintf("v%d", after.VersionNumber),
		Context:  3,
	})
	if errDiff != nil {
		return "", fmt.Errorf("versions: diff: %w", errDiff)
	}
	return strings.TrimRight(diff, "\n"), nil
}

// Rollback overwrites the rule's live evaluable fields with the
// target version's fields and records the rollback as a new,
// forward-moving version flagged is_rollback.
func Rollback(ctx context.Context, db *gorm.DB, rule *models.Rule, target *models.RuleVersion, changeNote string) error {
	if rule == nil || target == nil {
		return fmt.Errorf("versions: rollback needs a rule and a target version")
	}
	if target.RuleID != rule.ID {
		return fmt.Errorf("versions: version %d does not belong to rule %d", target.VersionNumber, rule.ID)
	}

	rule.Name = target.Name
	rule.Priority = target.Priority
	rule.TriggerType = target.TriggerType
	rule.TriggerConfig = target.TriggerConfig
	rule.Conditions = target.Conditions
	rule.Actions = target.Actions
	rule.Enabled = target.Enabled
	rule.LifecycleState = target.LifecycleState

	if errSave := db.WithContext(ctx).Save(rule).Error; errSave != nil {
		return fmt.Errorf("versions: save rolled-back rule: %w", errSave)
	}

	note := changeNote
	if note == "" {
		note = fmt.Sprintf("Rollback to v%d", target.VersionNumber)
	}
	if _, errSnap := Snapshot(ctx, db, rule, note, true); errSnap != nil {
		return errSnap
	}
	return nil
}
